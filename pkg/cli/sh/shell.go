package sh

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/droplab/opendrop.go/pkg/opendrop/frame"
	"github.com/droplab/opendrop.go/pkg/opendrop/link"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	AutoConnect bool

	Shell   *ishell.Shell
	Session *Session
}

// Session is one open board connection plus the desired state pushed
// on every exchange.
type Session struct {
	Link       *link.Link
	Electrodes frame.ElectrodeState
	Feedback   bool
	Temps      [3]int
	Last       *frame.Telemetry
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly      bool
	portFlag      string
	baudRate      = link.DefaultBaudRate
	readTimeoutMS = int(link.DefaultReadTimeout / time.Millisecond)

	// commands
	commands = []*ishell.Cmd{
		&PortsCmd,
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.StringVar(&portFlag, "port", portFlag, "Serial port to open at startup ('auto' detects by USB id).")
	flag.IntVar(&baudRate, "baud", baudRate, "Serial baud rate.")
	flag.IntVar(&readTimeoutMS, "read-timeout", readTimeoutMS, "Telemetry response timeout in ms.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New() *Shell {
	s := &Shell{
		Interactive: !evalOnly,

		Shell: ishell.New(),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Session == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// Push writes the session state to the board and prints the telemetry
// it answers with. A board that stays silent is reported rather than
// treated as an error: a half-plugged device is exactly what this tool
// diagnoses. Only transport faults come back as errors.
func Push(c *ishell.Context) error {
	s := ShellFrom(c)
	if s.Session == nil {
		err := fmt.Errorf("not connected")
		c.Err(err)
		return err
	}
	t, err := s.Session.Link.Transact(link.TransactOptions{
		Electrodes:      s.Session.Electrodes,
		FeedbackEnabled: s.Session.Feedback,
		Temperatures:    s.Session.Temps,
		ReadTimeout:     time.Duration(readTimeoutMS) * time.Millisecond,
		Force:           true,
	})
	if err != nil {
		c.Err(err)
		return err
	}
	s.Session.Last = t
	if !t.Connected {
		c.Println("Warning: device did not respond in time (disconnected or wrong protocol)")
		return nil
	}
	PrintTelemetry(c, t)
	return nil
}

// PrintTelemetry prints one decoded telemetry frame.
func PrintTelemetry(c *ishell.Context, t *frame.Telemetry) {
	if t.HasBoardID {
		c.Printf("  board id: %d\n", t.BoardID)
	}
	if t.HasTemperatures {
		c.Printf("  temperatures: %.2f %.2f %.2f\n",
			t.Temperatures[0], t.Temperatures[1], t.Temperatures[2])
	}
	c.Printf("  feedback: %d channels active (%d byte response)\n",
		t.Feedback.ActiveCount(), t.ResponseLen)
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Connect resolves and opens the serial port. An empty or "auto" port
// detects the board by USB id.
func (s *Shell) Connect(port string) error {
	if port == "auto" {
		port = ""
	}
	name, err := link.Discover(port)
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("no board found (USB id %s:%s), pass a port name",
			link.BoardVID, link.BoardPID)
	}
	if s.Interactive {
		s.Shell.Printf("Connecting to %s at %d baud ...\n", name, baudRate)
	}
	l, err := link.Open(name, link.Options{BaudRate: baudRate})
	if err != nil {
		return err
	}
	if s.Session != nil {
		s.Session.Link.Close()
	}
	s.Session = &Session{
		Link:  l,
		Temps: [3]int{frame.DefaultTemperatureC, frame.DefaultTemperatureC, frame.DefaultTemperatureC},
	}
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", name))
	return nil
}

// Disconnect closes the current connection.
func (s *Shell) Disconnect() {
	if s.Session != nil {
		s.Session.Link.Close()
		s.Session = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && portFlag != "" {
		if err := s.Connect(portFlag); err != nil {
			log.Fatalf("connect %q failed: %v", portFlag, err)
		}
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		s.Disconnect()
		return
	}
	if s.Interactive {
		s.Shell.Run()
		s.Disconnect()
		return
	}
	log.Fatalln("command expected")
}

var (
	// PortsCmd lists the serial ports present.
	PortsCmd = ishell.Cmd{
		Name:    "ports",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ports, err := link.ListPorts()
			if err != nil {
				c.Err(err)
				return
			}
			if len(ports) == 0 {
				c.Println("No serial ports found")
				return
			}
			for _, p := range ports {
				line := p.Name
				if p.IsUSB {
					line += fmt.Sprintf("\t%s:%s", p.VID, p.PID)
					if p.SerialNumber != "" {
						line += "\t" + p.SerialNumber
					}
				}
				c.Println(line)
			}
		},
	}

	// ConnectCmd opens the board connection.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[PORT]",
		Func: func(c *ishell.Context) {
			var port string
			if len(c.Args) > 0 {
				port = c.Args[0]
			}
			if err := ShellFrom(c).Connect(port); err != nil {
				c.Err(err)
				return
			}
		},
	}

	// DisconnectCmd closes the current connection.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New().WithAutoConnect(true).Run(flag.Args()...)
}
