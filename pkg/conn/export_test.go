package conn

// Pending returns the number of unanswered requests on the connection.
func (t *TCPConn) Pending() int {
	return t.pending
}

// Broken reports whether a failed drain left the connection unusable.
func (t *TCPConn) Broken() bool {
	return t.broken.Load()
}
