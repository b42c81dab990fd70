// Package client implements the interactive terminal client.
package client

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
)

const prompt = "> "

// Run connects to addr and relays lines between the user and the server
// until the user sends exit, input ends, or the server goes away.
func Run(addr string, in io.Reader, out io.Writer) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer conn.Close()

	welcome, err := readMessage(conn)
	if err != nil {
		return fmt.Errorf("read welcome: %w", err)
	}
	fmt.Fprintln(out, welcome)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()

		if _, err := conn.Write([]byte(line + "\n")); err != nil {
			return fmt.Errorf("send command: %w", err)
		}

		response, err := readMessage(conn)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read response: %w", err)
		}
		fmt.Fprintln(out, response)

		if isExit(line) {
			return nil
		}
	}
}

// readMessage reads one server message. Messages are written whole by
// the server and small, so a single read suffices.
func readMessage(conn net.Conn) (string, error) {
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

func isExit(line string) bool {
	fields := strings.Fields(line)
	return len(fields) > 0 && strings.ToLower(fields[0]) == "exit"
}
