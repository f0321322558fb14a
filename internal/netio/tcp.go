package netio

import (
	"net"

	"golang.org/x/sys/unix"
)

// SetNoDelay disables Nagle's algorithm on conn via the raw socket
// option, the same SyscallConn/unix.SetsockoptInt pattern an audio
// receiver uses to tune multicast sockets, applied here to
// TCP_NODELAY so channel samples are forwarded without batching
// delay.
func SetNoDelay(conn net.Conn) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	raw, err := tcpConn.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sockErr
}
