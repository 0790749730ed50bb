package slurptun

import (
	"log"
	"sync"
)

// TunWorker owns one running tunnel: the tun device, the in-process netstack, and the pump and
// session-adapter tasks wired between them.
type TunWorker struct {
	cfg TunConfig

	dispatcher Dispatcher
	resolver   Resolver

	device Device
	stack  *netStack

	datagram *TunDatagram

	wg sync.WaitGroup
}

// NewTunWorker returns a worker for the given tun config. A disabled config yields a nil worker
// and nil error -- nothing to run is not a failure.
func NewTunWorker(cfg TunConfig, dispatcher Dispatcher, resolver Resolver) (*TunWorker, error) {
	if !cfg.Enable {
		return nil, nil //nolint:nilnil
	}

	w := &TunWorker{
		cfg:        cfg,
		dispatcher: dispatcher,
		resolver:   resolver,
	}

	return w, nil
}

// Bind opens (or adopts) the tun device, configures it, and stands the netstack up. No traffic
// moves until Run.
func (w *TunWorker) Bind() error {
	device, prefix, host, err := openDevice(w.cfg)
	if err != nil {
		return err
	}

	w.device = device

	ns, err := newNetStack(TCPBacklog, UDPBacklog)
	if err != nil {
		closeErr := device.Close()
		if closeErr != nil {
			log.Printf(
				"encountered error %q standing netstack up for tun %q, and subsequent error %q"+
					" attempting to close the device",
				err, device.Name(), closeErr,
			)
		}

		return err
	}

	w.stack = ns

	log.Printf("tun started at %q with address %s/%d", device.Name(), host, prefix.Bits())

	return nil
}

// Run spawns the two frame pump loops, the tcp accept loop, and the udp adapter, then returns.
func (w *TunWorker) Run() {
	// published before any task spawns so Shutdown always sees it
	w.datagram = newTunDatagram(DatagramChannelDepth)

	w.wg.Add(4) //nolint:gomnd

	go w.deviceToStack()
	go w.stackToDevice()
	go w.acceptStreams()
	go w.handleDatagrams()
}

// Wait blocks until every task has exited -- a join over all of them, not a race to the first.
func (w *TunWorker) Wait() {
	w.wg.Wait()

	log.Printf("tun at %q stopped", w.device.Name())
}

// Shutdown closes the device, the netstack, and the datagram channel so every task winds down,
// then waits for them. The signature matches what the manager's reload path expects.
func (w *TunWorker) Shutdown(wg *sync.WaitGroup) {
	err := w.device.Close()
	if err != nil {
		log.Printf("encountered error closing tun device %q, err: %s", w.device.Name(), err)
	}

	w.stack.close()

	if w.datagram != nil {
		_ = w.datagram.Close()
	}

	w.wg.Wait()

	wg.Done()
}

func (w *TunWorker) deviceToStack() {
	defer w.wg.Done()

	pumpDeviceToStack(w.device, w.stack, w.device.Name())
}

func (w *TunWorker) stackToDevice() {
	defer w.wg.Done()

	pumpStackToDevice(w.stack, w.device, w.device.Name())
}

func (w *TunWorker) acceptStreams() {
	defer w.wg.Done()

	for {
		conn, ok := w.stack.accept()
		if !ok {
			log.Printf("tcp accept stream for tun %q ended", w.device.Name())

			return
		}

		go handleStream(conn, w.resolver, w.dispatcher)
	}
}

// handleDatagrams presents every udp flow traversing the tunnel to the dispatcher as one logical
// datagram channel behind a single udp session.
func (w *TunWorker) handleDatagrams() {
	defer w.wg.Done()

	var loops sync.WaitGroup

	loops.Add(2) //nolint:gomnd

	go func() {
		defer loops.Done()

		writeDatagrams(w.datagram, w.stack.udp, w.resolver)
	}()

	go func() {
		defer loops.Done()

		readDatagrams(w.stack.udp, w.datagram)
	}()

	// a single session covers the whole bundle; per-packet endpoints carry the real addressing
	w.dispatcher.DispatchDatagram(Session{Network: NetworkUDP}, w.datagram)

	loops.Wait()
}
