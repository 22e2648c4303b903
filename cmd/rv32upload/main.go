// Command rv32upload uploads a firmware image to a device running the
// rv32boot bootloader. Raw binaries are wrapped in the 20-byte image header
// automatically; Intel HEX files are flattened first.
package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/feaksel/rv32boot"
	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

const appVersion = "1.0.0"

const (
	statusAck = 0x06
	statusNak = 0x15
)

func main() {
	version := flag.Bool("version", false, "Prints the program version.")
	port := flag.String("port", "", "Serial port name.")
	baud := flag.Int("baud", 115200, "Baud rate.")
	fwVersion := flag.String("fw-version", "1.0.0", "Firmware version to stamp into the header (X.Y.Z).")
	key := flag.String("key", "U", "Update mode key to send during the boot window.")
	ack := flag.Bool("ack", false, "Wait for the ACK/NAK status byte instead of scanning diagnostic text.")
	verbose := flag.Bool("v", false, "Enable verbose logging.")
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
	if len(flag.Args()) != 1 {
		log.Fatal("must specify firmware file to upload")
	}

	ver, err := parseVersion(*fwVersion)
	if err != nil {
		log.Fatalf("invalid firmware version: %v", err)
	}

	data, err := loadFirmware(flag.Args()[0])
	if err != nil {
		log.Fatalf("failed to load firmware: %v", err)
	}
	if len(data) == 0 {
		log.Fatal("firmware file is empty")
	}
	image := wrapImage(data, ver)
	log.Infof("image size: %d bytes", len(image))

	dev, err := serial.OpenPort(&serial.Config{
		Name:        *port,
		Baud:        *baud,
		ReadTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("failed to open serial port: %v", err)
	}
	defer dev.Close()

	if err := enterUpdateMode(dev, (*key)[0]); err != nil {
		log.Fatalf("bootloader not responding: %v", err)
	}

	log.Infof("uploading firmware...")
	if err := stream(dev, image); err != nil {
		log.Fatalf("upload failed: %v", err)
	}

	log.Infof("upload complete, waiting for verification...")
	if err := awaitResult(dev, *ack); err != nil {
		log.Fatalf("verification failed: %v", err)
	}
	log.Infof("upload successful")
}

func parseVersion(s string) (uint32, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%q is not in X.Y.Z format", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, err
		}
		nums[i] = n
	}
	return rv32boot.EncodeVersion(nums[0], nums[1], nums[2]), nil
}

// enterUpdateMode pokes the update key until the bootloader announces update
// mode, for up to ten seconds. The device may be mid-boot, so the key is
// repeated each poll.
func enterUpdateMode(dev *serial.Port, key byte) error {
	deadline := time.Now().Add(10 * time.Second)
	var seen strings.Builder
	buf := make([]byte, 256)
	for time.Now().Before(deadline) {
		dev.Write([]byte{key})
		n, _ := dev.Read(buf)
		if n > 0 {
			seen.Write(buf[:n])
			log.Debugf("device: %s", strings.TrimSpace(string(buf[:n])))
		}
		text := seen.String()
		if strings.Contains(text, "UPDATE MODE") || strings.Contains(text, "Waiting for firmware") {
			log.Infof("bootloader ready")
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("no update mode prompt within 10s")
}

func stream(dev *serial.Port, image []byte) error {
	const chunkSize = 128
	for sent := 0; sent < len(image); sent += chunkSize {
		end := sent + chunkSize
		if end > len(image) {
			end = len(image)
		}
		if _, err := dev.Write(image[sent:end]); err != nil {
			return fmt.Errorf("write failed at byte %d: %v", sent, err)
		}
		log.Debugf("sent %d/%d bytes", end, len(image))
		// Keep well inside the device's chunk timeout.
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

// awaitResult watches the device's response for up to ten seconds. With ack
// set, the single ACK/NAK status byte decides the outcome; otherwise the
// diagnostic text is scanned for the reference success/failure phrases.
func awaitResult(dev *serial.Port, ack bool) error {
	deadline := time.Now().Add(10 * time.Second)
	var seen strings.Builder
	buf := make([]byte, 256)
	for time.Now().Before(deadline) {
		n, _ := dev.Read(buf)
		for _, b := range buf[:n] {
			if ack {
				switch b {
				case statusAck:
					return nil
				case statusNak:
					return fmt.Errorf("device reported NAK (integrity check failed)")
				}
			}
			seen.WriteByte(b)
		}
		if n > 0 {
			log.Debugf("device: %s", strings.TrimSpace(string(buf[:n])))
		}
		if !ack {
			text := seen.String()
			if strings.Contains(text, "update successful") || strings.Contains(text, "Firmware update successful") {
				return nil
			}
			if strings.Contains(text, "ERROR") {
				return fmt.Errorf("device reported: %s", lastLine(text))
			}
		}
	}
	return fmt.Errorf("no verification result within 10s")
}

func lastLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
