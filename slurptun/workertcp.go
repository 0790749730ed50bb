package slurptun

import "log"

// handleStream synthesizes the session for one accepted tcp connection and hands it to the
// dispatcher. Runs in its own goroutine so a slow dispatch never stalls the accept loop.
func handleStream(conn acceptedConn, resolver Resolver, dispatcher Dispatcher) {
	sess, ok := synthesizeSession(conn.src, conn.dst, resolver)
	if !ok {
		// no way to know where the client actually wanted to go, abandon the connection
		_ = conn.stream.Close()

		return
	}

	dispatcher.DispatchStream(sess, conn.stream)
}

// synthesizeSession builds the tcp session for an accepted flow, undoing a synthetic (fake-ip)
// destination when the resolver knows the hostname behind it. ok is false when the destination
// is synthetic but has no reverse mapping -- callers abandon those flows.
func synthesizeSession(src, dst Endpoint, resolver Resolver) (sess Session, ok bool) {
	sess = Session{
		Network:     NetworkTCP,
		Source:      src,
		Destination: dst,
	}

	if !resolver.FakeIPEnabled() || !resolver.IsFakeIP(dst.IP) {
		return sess, true
	}

	host, found := resolver.ReverseLookup(dst.IP)
	if !found {
		log.Printf(
			"failed resolving synthetic destination %s for connection from %s, abandoning it",
			dst, src,
		)

		return Session{}, false
	}

	sess.Destination = HostEndpoint(host, dst.Port)

	return sess, true
}
