package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/droplab/opendrop.go/pkg/bus/mqtt"
	"github.com/droplab/opendrop.go/pkg/opendrop/msgs"
)

var (
	mqttURL = "mqtt://localhost:1883"
)

func init() {
	if val := os.Getenv("OPENDROP_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}

	show := mqtt.Handler(func(topic string, payload []byte) {
		env := msgs.ParseEnvelope(payload)
		if ts, ok := env.Time(); ok {
			log.Printf("%s: %s (age %s)", topic, env.Message,
				time.Since(ts).Round(time.Millisecond))
			return
		}
		log.Printf("%s: %s", topic, env.Message)
	})
	q.Sub(msgs.DevicePrefix+"/#", show)
	q.Sub(msgs.CompatPrefix+"/#", show)

	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	<-(chan struct{})(nil)
}
