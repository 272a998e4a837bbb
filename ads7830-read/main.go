package main

import (
	"flag"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/antongulenko/ads7830/ads7830"
	"github.com/antongulenko/ads7830/board"
	"github.com/antongulenko/ads7830/bus"
	"github.com/antongulenko/golib"
	log "github.com/sirupsen/logrus"
)

type commandFunc func() error

var (
	b         = board.DefaultBoard
	sleepTime = 100 * time.Millisecond
	rounds    = 0
	command   = "all"
	commands  = map[string]commandFunc{
		"none":  func() error { return nil },
		"scan":  scan,
		"read":  readChannels,
		"all":   readAllSingleEnded,
		"diff":  readAllDifferential,
		"volts": readVoltages,
		"watch": watch,
	}
)

func main() {
	b.RegisterFlags()
	flag.DurationVar(&sleepTime, "sleep", sleepTime, "Sleep time between rounds (watch command)")
	flag.IntVar(&rounds, "n", rounds, "Number of rounds for the watch command (0 = endless)")
	flag.StringVar(&command, "c", command, fmt.Sprintf("Command to execute, one of: %v", commandNames()))
	golib.RegisterFlags(golib.FlagsAll)
	flag.Parse()
	golib.ConfigureLogging()
	golib.Checkerr(doMain())
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func doMain() error {
	commandFunc, ok := commands[command]
	if !ok {
		return fmt.Errorf("Unknown command %v, available commands: %v", command, commandNames())
	}
	if err := b.Setup(); err != nil {
		return err
	}
	defer b.Cleanup()
	return commandFunc()
}

func scan() error {
	slaves, err := bus.Scan(b.Bus())
	if err != nil {
		return err
	}
	addrs := make([]string, len(slaves))
	for i, addr := range slaves {
		addrs[i] = fmt.Sprintf("%#02x", addr)
	}
	log.Printf("Scanned %v slaves: %v", len(slaves), strings.Join(addrs, " "))
	return nil
}

func parseChannels() ([]int, error) {
	if flag.NArg() == 0 {
		return nil, fmt.Errorf("No channels given, expecting channel numbers 0..%v as arguments", ads7830.NUM_CHANNELS-1)
	}
	channels := make([]int, 0, flag.NArg())
	for _, arg := range flag.Args() {
		channel, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("Failed to parse argument '%v' as channel: %v", arg, err)
		}
		channels = append(channels, channel)
	}
	return channels, nil
}

func readChannels() error {
	channels, err := parseChannels()
	if err != nil {
		return err
	}
	for _, channel := range channels {
		val, err := b.Adc.Read(channel)
		if err != nil {
			return err
		}
		log.Printf("ADC %v = %v", ads7830.ChannelName(channel, b.Adc.Differential), val)
	}
	return nil
}

func readVoltages() error {
	channels, err := parseChannels()
	if err != nil {
		return err
	}
	for _, channel := range channels {
		volt, err := b.Adc.Voltage(channel)
		if err != nil {
			return err
		}
		log.Printf("ADC %v = %.3fV", ads7830.ChannelName(channel, b.Adc.Differential), volt)
	}
	return nil
}

func formatValues(values []uint16) string {
	parts := make([]string, len(values))
	for i, val := range values {
		parts[i] = fmt.Sprintf("%5v", val)
	}
	return strings.Join(parts, " ")
}

func readAllSingleEnded() error {
	values, err := b.Adc.AllSingleEnded()
	if err != nil {
		return err
	}
	log.Printf("Single-ended CH0..CH7: %v", formatValues(values))
	return nil
}

func readAllDifferential() error {
	values, err := b.Adc.AllDifferential()
	if err != nil {
		return err
	}
	names := make([]string, 0, ads7830.NUM_PAIRS)
	for channel := 0; channel < ads7830.NUM_CHANNELS; channel += 2 {
		names = append(names, ads7830.ChannelName(channel, true))
	}
	log.Printf("Differential %v: %v", strings.Join(names, " "), formatValues(values))
	return nil
}

func watch() error {
	for i := 0; rounds <= 0 || i < rounds; i++ {
		if err := readAllSingleEnded(); err != nil {
			return err
		}
		time.Sleep(sleepTime)
	}
	return nil
}
