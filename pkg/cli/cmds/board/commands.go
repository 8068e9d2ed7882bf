package board

import (
	"fmt"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/droplab/opendrop.go/pkg/cli/sh"
	"github.com/droplab/opendrop.go/pkg/opendrop/frame"
)

const (
	stepDelay  = time.Second
	demoDelay  = 2 * time.Second
	demoCycles = 5
)

// defaultWalk is the channel sequence tested when none is given.
var defaultWalk = []int{0, 1, 2, 5, 10}

var (
	// ElectrodesCmd walks a channel sequence, one channel on at a time.
	ElectrodesCmd = ishell.Cmd{
		Name:    "electrodes",
		Aliases: []string{"e"},
		Help:    "[CH ...]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			seq := defaultWalk
			if len(c.Args) > 0 {
				parsed, err := parseChannels(c.Args)
				if err != nil {
					c.Err(err)
					return
				}
				seq = parsed
			}
			s := sh.ShellFrom(c)
			c.Printf("Testing electrodes %v (%v each) ...\n", seq, stepDelay)
			for _, ch := range seq {
				s.Session.Electrodes.ClearAll()
				s.Session.Electrodes.Set(ch, true)
				c.Printf("  ON = [%d]\n", ch)
				if err := sh.Push(c); err != nil {
					return
				}
				time.Sleep(stepDelay)
			}
			s.Session.Electrodes.ClearAll()
			c.Println("  All OFF")
			sh.Push(c)
		}),
	}

	// AllOffCmd turns every electrode off.
	AllOffCmd = ishell.Cmd{
		Name:    "all-off",
		Aliases: []string{"off"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.ShellFrom(c).Session.Electrodes.ClearAll()
			c.Println("Sending all electrodes OFF ...")
			sh.Push(c)
		}),
	}

	// DemoCmd toggles electrode 0 a few times.
	DemoCmd = ishell.Cmd{
		Name: "demo",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			c.Printf("Toggling electrode 0 every %v, %d times ...\n", demoDelay, demoCycles)
			for i := 0; i < demoCycles; i++ {
				s.Session.Electrodes.ClearAll()
				s.Session.Electrodes.Set(0, true)
				if err := sh.Push(c); err != nil {
					return
				}
				time.Sleep(demoDelay)
				s.Session.Electrodes.Set(0, false)
				if err := sh.Push(c); err != nil {
					return
				}
				time.Sleep(demoDelay)
			}
			c.Println("Demo done")
		}),
	}

	// FeedbackCmd switches drop detection feedback on or off.
	FeedbackCmd = ishell.Cmd{
		Name:    "feedback",
		Aliases: []string{"fb"},
		Help:    "on|off",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("on|off required"))
				return
			}
			on, err := strconv.ParseBool(c.Args[0])
			if err != nil {
				switch c.Args[0] {
				case "on":
					on = true
				case "off":
					on = false
				default:
					c.Err(fmt.Errorf("invalid flag %q", c.Args[0]))
					return
				}
			}
			sh.ShellFrom(c).Session.Feedback = on
			sh.Push(c)
		}),
	}

	// TempsCmd sets the three heater setpoints.
	TempsCmd = ishell.Cmd{
		Name:    "temps",
		Aliases: []string{"t"},
		Help:    "T1 T2 T3 (celsius)",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) != 3 {
				c.Err(fmt.Errorf("three setpoints required"))
				return
			}
			var temps [3]int
			for n, arg := range c.Args {
				val, err := strconv.Atoi(arg)
				if err != nil {
					c.Err(fmt.Errorf("invalid setpoint %q: %v", arg, err))
					return
				}
				temps[n] = frame.ClampTemperature(val)
			}
			sh.ShellFrom(c).Session.Temps = temps
			sh.Push(c)
		}),
	}

	// StatusCmd probes the board and prints the telemetry.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.Push(c)
		}),
	}
)

// parseChannels parses channel indices. Out-of-range channels are
// dropped quietly, matching what the board itself does with them.
func parseChannels(args []string) ([]int, error) {
	seq := make([]int, 0, len(args))
	for _, arg := range args {
		val, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid electrode index %q", arg)
		}
		if val >= 0 && val < frame.NumChannels {
			seq = append(seq, val)
		}
	}
	return seq, nil
}

func init() {
	sh.AddCmds(
		&ElectrodesCmd,
		&AllOffCmd,
		&DemoCmd,
		&FeedbackCmd,
		&TempsCmd,
		&StatusCmd,
	)
}
