// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package response

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/logsentinel/internal/config"
	"github.com/tomtom215/logsentinel/internal/detection"
)

// fakeSMTP accepts one session and returns the DATA payload.
func fakeSMTP(t *testing.T) (host string, port int, data <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }
		reply("220 localhost ESMTP test")

		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 localhost")
			case strings.HasPrefix(cmd, "MAIL FROM"), strings.HasPrefix(cmd, "RCPT TO"):
				reply("250 OK")
			case cmd == "DATA":
				reply("354 End data with <CR><LF>.<CR><LF>")
				var body strings.Builder
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					body.WriteString(l)
				}
				out <- body.String()
				reply("250 OK")
			case cmd == "QUIT":
				reply("221 Bye")
				return
			default:
				reply("250 OK")
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port, out
}

func TestEmailSink_Deliver(t *testing.T) {
	host, port, data := fakeSMTP(t)

	sink := NewEmailSink(config.EmailConfig{
		Host: host,
		Port: port,
		From: "monitor@example.com",
		To:   "soc@example.com",
	}, 2*time.Second)

	ev := detection.NewEvent("10.1.2.3", detection.CausePattern, "", time.Now())
	action := Action{Event: ev, Message: BuildMessage(ev, nil)}
	if err := sink.Deliver(context.Background(), action); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	select {
	case body := <-data:
		for _, want := range []string{
			"Subject: Cybersecurity Alert",
			"To: soc@example.com",
			"Content-Type: text/plain",
			MessagePrefix + "10.1.2.3",
		} {
			if !strings.Contains(body, want) {
				t.Errorf("message missing %q:\n%s", want, body)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestEmailSink_ConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	sink := NewEmailSink(config.EmailConfig{Host: "127.0.0.1", Port: port, To: "soc@example.com"}, time.Second)
	if err := sink.Deliver(context.Background(), Action{Message: "m"}); err == nil {
		t.Error("expected an error when the SMTP server is unreachable")
	}
}
