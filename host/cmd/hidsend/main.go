// hidsend exercises the proxy's serial receiver by sending scripted or
// interactive test packets. Useful for verifying a receiver before the
// real HID source is attached.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/rs/zerolog"

	"hidlink/host/link"
	"hidlink/host/serial"
	"hidlink/protocol"
)

var (
	device  = flag.String("device", "/dev/ttyUSB1", "Serial device path")
	baud    = flag.Int("baud", 921600, "Baud rate")
	demo    = flag.Bool("demo", false, "Run the scripted demo sequence and exit")
	verbose = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	lvl := zerolog.InfoLevel
	if *verbose {
		lvl = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Str("app", "hidsend").Logger()

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud

	l, err := link.Dial(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open link")
	}
	defer l.Close()

	if *demo {
		if err := runDemo(l); err != nil {
			log.Fatal().Err(err).Msg("demo failed")
		}
		return
	}

	runShell(l)
}

// runDemo replays the canned sequence used to bring up new receivers:
// a status banner, single keys, a chord, mouse motion and a typing burst.
func runDemo(l *link.Link) error {
	fmt.Println("Sending test packets...")

	if err := l.SendStatus("UART Protocol Test Started"); err != nil {
		return err
	}
	time.Sleep(500 * time.Millisecond)

	// 'a' press and release.
	fmt.Println("--- Simulating 'a' key press ---")
	if err := tap(l, 0, 0x04); err != nil {
		return err
	}
	time.Sleep(500 * time.Millisecond)

	// Shift+A.
	fmt.Println("--- Simulating Shift+A ---")
	if err := tap(l, protocol.ModLeftShift, 0x04); err != nil {
		return err
	}
	time.Sleep(500 * time.Millisecond)

	// Mouse motion, then a left click.
	fmt.Println("--- Simulating mouse movement ---")
	if err := l.SendMouse(0, 10, -5); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	if err := l.SendMouse(protocol.ButtonLeft, 0, 0); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	if err := l.SendMouse(0, 0, 0); err != nil {
		return err
	}
	time.Sleep(500 * time.Millisecond)

	// Rapid typing, ten keys per second for three seconds.
	fmt.Println("--- Simulating rapid typing ---")
	for i := 0; i < 30; i++ {
		key := byte(0x04 + i%26) // cycle a-z
		if err := tap(l, 0, key); err != nil {
			return err
		}
		time.Sleep(50 * time.Millisecond)
	}

	fmt.Println("--- Test complete ---")
	return l.SendStatus("UART Protocol Test Complete")
}

// tap sends a key press followed by an all-released report.
func tap(l *link.Link, mod protocol.Modifier, key byte) error {
	if err := l.SendKeyboard(mod, [6]byte{key}); err != nil {
		return err
	}
	time.Sleep(50 * time.Millisecond)
	return l.SendKeyboard(0, [6]byte{})
}

func runShell(l *link.Link) {
	shell := ishell.New()
	shell.Println("hidsend - interactive HID link exerciser")

	shell.AddCmd(&ishell.Cmd{
		Name: "key",
		Help: "key <modifier-hex> <keycode-hex...>  press and release up to six keys",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 || len(c.Args) > 7 {
				c.Err(fmt.Errorf("usage: key <modifier-hex> <keycode-hex...>"))
				return
			}
			mod, err := parseHexByte(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			var keys [6]byte
			for i, arg := range c.Args[1:] {
				k, err := parseHexByte(arg)
				if err != nil {
					c.Err(err)
					return
				}
				keys[i] = k
			}
			if err := l.SendKeyboard(protocol.Modifier(mod), keys); err != nil {
				c.Err(err)
				return
			}
			time.Sleep(50 * time.Millisecond)
			if err := l.SendKeyboard(0, [6]byte{}); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "mouse",
		Help: "mouse <buttons-hex> <dx> <dy>  send one relative mouse report",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 3 {
				c.Err(fmt.Errorf("usage: mouse <buttons-hex> <dx> <dy>"))
				return
			}
			buttons, err := parseHexByte(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			dx, err := parseDelta(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			dy, err := parseDelta(c.Args[2])
			if err != nil {
				c.Err(err)
				return
			}
			if err := l.SendMouse(protocol.Button(buttons), dx, dy); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "status <text...>  send a status message",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("usage: status <text...>"))
				return
			}
			text := c.Args[0]
			for _, a := range c.Args[1:] {
				text += " " + a
			}
			if err := l.SendStatus(text); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "ack",
		Help: "ack  send an empty acknowledgement",
		Func: func(c *ishell.Context) {
			if err := l.SendAck(); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "demo",
		Help: "demo  run the scripted demo sequence",
		Func: func(c *ishell.Context) {
			if err := runDemo(l); err != nil {
				c.Err(err)
			}
		},
	})

	shell.Run()
}

func parseHexByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid hex byte %q", s)
	}
	return byte(v), nil
}

func parseDelta(s string) (int8, error) {
	v, err := strconv.ParseInt(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid delta %q (range -128..127)", s)
	}
	return int8(v), nil
}
