package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"

	"github.com/droplab/opendrop.go/pkg/bus/mqtt"
	"github.com/droplab/opendrop.go/pkg/framework"
	"github.com/droplab/opendrop.go/pkg/opendrop"
	"github.com/droplab/opendrop.go/pkg/opendrop/msgs"
	"github.com/droplab/opendrop.go/pkg/opendrop/prefs"
)

func init() {
	opendrop.SetupFlags()
}

func main() {
	flag.Parse()
	conf := opendrop.NewConfig()

	store, err := prefs.Open(conf.PrefsPath)
	if err != nil {
		log.Fatalln(err)
	}

	opts, prefix, err := mqtt.ClientOptionsFromURL(conf.BrokerURL)
	if err != nil {
		log.Fatalln(err)
	}
	if opts.ClientID == "" {
		opts.SetClientID("opendrop:" + opendrop.MachineID())
	}
	q := mqtt.NewQueue(opts, prefix)

	ctl := opendrop.NewController(store, opendrop.BusFunc(func(topic string, payload []byte) {
		q.Pub(topic, payload)
	}))
	router := opendrop.NewRouter(ctl, ctl, ctl, ctl.State)
	q.Sub(msgs.RequestsWildcard, router.Dispatch)
	q.Sub(msgs.CompatRequestsWildcard, router.Dispatch)
	q.OnConnect = func(*mqtt.Queue) {
		ctl.Supervisor().Announce()
	}

	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}

	if conf.AutoStart {
		ctl.StartMonitoring()
	}

	runner := framework.NewRunner().HandleSignals()
	runner.Go(framework.NamedRun("supervisor", ctl.Supervisor()))
	err = runner.Wait()
	q.Close()
	if err != nil {
		log.Fatalln(err)
	}
}
