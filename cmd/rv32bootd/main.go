// Command rv32bootd runs the rv32boot boot controller against a real serial
// port, standing in for the bootloader on the SoC. The application region is
// backed by a file so committed firmware survives restarts.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"github.com/feaksel/rv32boot"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const appVersion = "1.0.0"

const defaultCapacity = 16 * 1024

func main() {
	version := flag.Bool("version", false, "Prints the program version.")
	port := flag.String("port", "", "Serial port name.")
	baud := flag.Int("baud", 115200, "Baud rate.")
	region := flag.String("region", "app.region", "Application region backing file.")
	verbose := flag.Bool("v", false, "Enable verbose logging.")

	// Format an empty profile in YAML format as an example.
	buf := new(bytes.Buffer)
	enc := yaml.NewEncoder(buf)
	enc.Encode(bootProfile{})
	profile := flag.String("profile", "", "Bootloader profile yaml file. Example:\n\n"+buf.String())

	flag.Parse()

	if *version {
		fmt.Println(appVersion)
		return
	}

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	rv32boot.SetLogger(log.StandardLogger())

	if *port == "" {
		log.Fatal("must specify port")
	}

	opts := rv32boot.DefaultOptions()
	capacity := defaultCapacity
	if *profile != "" {
		f, err := os.ReadFile(*profile)
		if err != nil {
			log.Fatalf("failed to open profile file: %v", err)
		}
		p := new(bootProfile)
		if err := yaml.Unmarshal(f, p); err != nil {
			log.Fatalf("failed to parse profile file: %v", err)
		}
		p.apply(&opts, &capacity)
	}

	appRegion, err := rv32boot.NewFileRegion(*region, capacity)
	if err != nil {
		log.Fatalf("failed to open application region: %v", err)
	}

	serialPort, err := rv32boot.OpenSerialPort(*port, *baud)
	if err != nil {
		log.Fatalf("failed to open serial port: %v", err)
	}
	defer serialPort.Close()

	handoff := func(header rv32boot.Header, payload []byte) {
		// The SoC would jump to the entry point past the header here.
		log.Infof("handoff: version %s, entry offset %d, %d payload bytes",
			rv32boot.FormatVersion(header.Version), rv32boot.HeaderSize, len(payload))
	}

	boot := rv32boot.NewBootloader(serialPort, rv32boot.SystemClock(), appRegion, opts, handoff)
	log.Infof("bootloader running on %s, region %s (%d bytes)", *port, *region, capacity)
	if err := boot.Run(); err != nil {
		log.Fatalf("bootloader stopped: %v", err)
	}
}
