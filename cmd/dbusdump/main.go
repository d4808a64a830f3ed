// Command dbusdump dials the D-Bus system bus over its raw AF_UNIX
// socket (the unix:path= entry of DBUS_SYSTEM_BUS_ADDRESS, or the
// default system bus path), drives the handshake, and logs every
// decoded message until the connection closes.
package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/arnnvv/dbuswire/dbus"
)

const defaultSystemBusPath = "/var/run/dbus/system_bus_socket"

func main() {
	path := busSocketPath()

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		log.Fatalf("socket: %v", err)
	}
	defer unix.Close(fd)

	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Connect(fd, addr); err != nil {
		log.Fatalf("connect %s: %v", path, err)
	}

	ucred, err := unix.GetsockoptUcred(fd, unix.SOL_SOCKET, unix.SO_PEERCRED)
	if err != nil {
		log.Fatalf("SO_PEERCRED: %v", err)
	}

	driver := dbus.NewStreamDriver(int(ucred.Uid), dbus.WithLogger(slog.Default()))

	if out := driver.PendingOutbound(); len(out) > 0 {
		if _, err := unix.Write(fd, out); err != nil {
			log.Fatalf("write AUTH: %v", err)
		}
	}

	buf := make([]byte, 4096)
	for !driver.Failed() {
		n, err := unix.Read(fd, buf)
		if err != nil {
			log.Fatalf("read: %v", err)
		}
		if n == 0 {
			if err := driver.Close(); err != nil {
				log.Fatalf("connection closed: %v", err)
			}
			log.Println("dbusdump: connection closed")
			return
		}

		msgs, err := driver.Feed(buf[:n])
		for _, m := range msgs {
			fmt.Printf("%s serial=%d path=%s iface=%s member=%s sig=%s body=%v\n",
				m.Type, m.Serial, m.Path, m.Interface, m.Member, m.Signature, m.Body)
		}
		if err != nil {
			log.Fatalf("decode: %v", err)
		}

		if out := driver.PendingOutbound(); len(out) > 0 {
			if _, err := unix.Write(fd, out); err != nil {
				log.Fatalf("write: %v", err)
			}
		}
	}
}

func busSocketPath() string {
	if addr := os.Getenv("DBUS_SYSTEM_BUS_ADDRESS"); addr != "" {
		const pref = "unix:path="
		if i := strings.Index(addr, pref); i >= 0 {
			rest := addr[i+len(pref):]
			if end := strings.IndexByte(rest, ','); end >= 0 {
				rest = rest[:end]
			}
			return rest
		}
	}
	return defaultSystemBusPath
}
