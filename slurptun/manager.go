package slurptun

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"gopkg.in/yaml.v3"
)

// Manager is an interface representing the manager singleton's methods.
type Manager interface {
	Run() error
}

type manager struct {
	ctx       context.Context
	ctxCancel context.CancelFunc

	configPath string
	config     *Config
	liveReload bool

	dispatcher Dispatcher
	resolver   Resolver

	errChan chan error

	tun *TunWorker
}

var managerInst *manager //nolint:gochecknoglobals

// GetManager returns the singleton implementation of Manager.
func GetManager(opts ...Option) (Manager, error) {
	if managerInst != nil {
		return managerInst, nil
	}

	ctx, ctxCancel := SignalHandledContext(log.Fatalf)

	m := &manager{
		ctx:        ctx,
		ctxCancel:  ctxCancel,
		configPath: "slurptun.yaml",
		config:     &Config{},
		errChan:    make(chan error),
	}

	for _, opt := range opts {
		err := opt(m)
		if err != nil {
			log.Printf("failed applying manager config option, err: %s\n", err)

			return nil, err
		}
	}

	qualifiedConfigPath, err := filepath.Abs(m.configPath)
	if err != nil {
		log.Printf("failed determining absolute path to config, err: %s\n", err)

		return nil, err
	}

	m.configPath = qualifiedConfigPath

	configBytes, err := os.ReadFile(m.configPath)
	if err != nil {
		log.Printf("failed reading config file at path %q, err: %s\n", m.configPath, err)

		return nil, err
	}

	err = yaml.Unmarshal(configBytes, m.config)
	if err != nil {
		log.Printf("failed unmarshaling config file, err: %s\n", err)

		return nil, err
	}

	if m.dispatcher == nil {
		m.dispatcher = NewDirectDispatcher()
	}

	if m.resolver == nil {
		m.resolver = DisabledResolver{}
	}

	managerInst = m

	return managerInst, nil
}

// Run starts the tun worker from the configuration and runs until sigint or failure.
func (m *manager) Run() error {
	log.Println("manager run started, setting up tun worker...")

	err := m.setupTun()
	if err != nil {
		log.Printf("error creating tun worker: %s\n", err)

		return err
	}

	m.runTun()

	err = m.watchConfig()
	if err != nil {
		log.Printf("error setting up config watch: %s\n", err)

		return err
	}

	go func() {
		<-m.ctx.Done()

		m.shutdownTun()

		close(m.errChan)
	}()

	for err = range m.errChan {
		log.Printf("got error while running things, err: %s\n", err)
	}

	return nil
}

func (m *manager) setupTun() error {
	tun, err := NewTunWorker(m.config.Tun, m.dispatcher, m.resolver)
	if err != nil {
		return err
	}

	if tun == nil {
		log.Println("tun is disabled in config, nothing to run...")

		return nil
	}

	err = tun.Bind()
	if err != nil {
		return err
	}

	m.tun = tun

	return nil
}

func (m *manager) runTun() {
	if m.tun == nil {
		return
	}

	m.tun.Run()

	go m.tun.Wait()
}

func (m *manager) shutdownTun() {
	if m.tun == nil {
		return
	}

	wg := &sync.WaitGroup{}

	wg.Add(1)

	go m.tun.Shutdown(wg)

	wg.Wait()

	m.tun = nil
}

func (m *manager) watchConfig() error {
	if !m.liveReload {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					panic("unknown issue handling config watch event")
				}

				log.Printf("got config watch event %q\n", event)

				if event.Name == m.configPath && event.Has(fsnotify.Write) {
					m.reloadConfig()
				}
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					panic("unknown issue handling config watch error")
				}

				m.errChan <- watchErr
			}
		}
	}()

	err = watcher.Add(filepath.Dir(m.configPath))
	if err != nil {
		return err
	}

	return nil
}

func (m *manager) reloadConfig() {
	log.Print("processing config update...")

	configBytes, err := os.ReadFile(m.configPath)
	if err != nil {
		panic(fmt.Sprintf("failed reading config file at path %q, err: %s\n", m.configPath, err))
	}

	newConfig := &Config{}

	err = yaml.Unmarshal(configBytes, newConfig)
	if err != nil {
		panic(fmt.Sprintf("failed unmarshaling config file, err: %s\n", err))
	}

	if configsEqual(m.config, newConfig) {
		log.Print("previous and current parsed config are equal, nothing to do...")

		return
	}

	log.Print("config has changes, restarting tun worker...")

	m.config = newConfig

	log.Printf("shutting down tun worker after config update")
	m.shutdownTun()

	log.Printf("restarting tun worker after config update")

	err = m.setupTun()
	if err != nil {
		m.errChan <- err

		return
	}

	m.runTun()
}

func configsEqual(existingConfig, newConfig *Config) bool {
	return existingConfig.Tun == newConfig.Tun
}
