package slurptun

import (
	"io"
	"log"
)

// frameSink accepts raw ip frames headed into the netstack.
type frameSink interface {
	writeFrame(frame Bytes) error
}

// frameSource yields raw ip frames the netstack wants written to the device.
type frameSource interface {
	readFrame() (frame Bytes, ok bool)
}

// pumpDeviceToStack moves frames from the device into the stack, one at a time, in order, until
// either side fails. A failure here ends only this direction -- the opposite pump keeps going
// until its own side fails.
func pumpDeviceToStack(device io.Reader, sink frameSink, name string) {
	for {
		data := make(Bytes, DefaultMTU)

		readN, err := device.Read(data)
		if err != nil {
			log.Printf("encountered error reading frame from tun %q, err: %s", name, err)

			return
		}

		err = sink.writeFrame(data[:readN])
		if err != nil {
			log.Printf("encountered error injecting frame from tun %q, err: %s", name, err)

			return
		}
	}
}

// pumpStackToDevice moves frames from the stack onto the device, one at a time, in order, until
// either side fails.
func pumpStackToDevice(source frameSource, device io.Writer, name string) {
	for {
		frame, ok := source.readFrame()
		if !ok {
			log.Printf("netstack frame stream for tun %q ended", name)

			return
		}

		writeN, err := device.Write(frame)
		if err != nil {
			log.Printf("encountered error writing frame to tun %q, err: %s", name, err)

			return
		}

		if writeN != len(frame) {
			log.Printf(
				"wrote %d bytes to tun %q but expected to write %d", writeN, name, len(frame),
			)
		}
	}
}
