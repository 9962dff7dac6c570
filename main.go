package main

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"github.com/czeppi/ergokb/clock"
	"github.com/czeppi/ergokb/config"
	"github.com/czeppi/ergokb/diagnostics"
	"github.com/czeppi/ergokb/halfresolver"
	"github.com/czeppi/ergokb/hidio"
	"github.com/czeppi/ergokb/keygroup"
	"github.com/czeppi/ergokb/keyboardcreator"
	"github.com/czeppi/ergokb/link"
	"github.com/czeppi/ergokb/reactions"
	"github.com/czeppi/ergokb/vkey"
	"github.com/czeppi/ergokb/vkeyboard"
)

const version = "0.1.0"

// tickInterval is the super-loop's suspension point between iterations.
const tickInterval = 1 * time.Millisecond

// errorBackoff is the pause after a caught runtime peripheral error
// before the pipeline resumes with state preserved.
const errorBackoff = 500 * time.Millisecond

var opts struct {
	Version    bool   `short:"v" long:"version" description:"Show the version"`
	Debug      bool   `short:"d" long:"debug" description:"Show verbose debug information"`
	ConfigFile string `short:"c" long:"config" description:"The config file"`
}

// pipeline is everything one super-loop tick touches: the left and right
// halves' key-group resolvers, the in-process stand-in for the inter-half
// serial link, the virtual keyboard state machine and the HID sinks.
type pipeline struct {
	leftSource  hidio.PhysicalKeySource
	rightSource hidio.PhysicalKeySource
	rotary      hidio.RotarySource

	leftResolver  *halfresolver.Resolver
	rightResolver *halfresolver.Resolver

	lk *link.ChanLink

	keyboard *vkeyboard.Keyboard
	sink     hidio.Sink

	recorder  *diagnostics.Recorder
	typist    *diagnostics.Typist
	stats     *diagnostics.TickStats
	codeNames map[vkey.KeyCode]string
}

func main() {
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	log.SetOutput(os.Stdout)
	if opts.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	configFile := opts.ConfigFile
	if configFile == "" {
		u, err := user.Current()
		if err != nil {
			exitError(err, "Failed to get the current user")
		}
		configFile = filepath.Join(u.HomeDir, config.DefaultConfigFile)
	}
	log.Debugf("Using config file: %s", configFile)

	cfg, err := config.Load(configFile)
	if err != nil {
		exitError(err, "Failed to read the config file")
	}

	p, err := buildPipeline(cfg)
	if err != nil {
		exitError(err, "Failed to build the keyboard pipeline from the config file")
	}
	defer p.close()

	p.run()
}

// buildPipeline implements construction-time wiring: every configuration
// error is rejected here, before the super-loop starts.
func buildPipeline(cfg *config.Config) (*pipeline, error) {
	leftGroups, err := buildGroups(cfg.Left, cfg.ComboTermMs)
	if err != nil {
		return nil, fmt.Errorf("left half: %w", err)
	}
	rightGroups, err := buildGroups(cfg.Right, cfg.ComboTermMs)
	if err != nil {
		return nil, fmt.Errorf("right half: %w", err)
	}

	leftResolver, err := halfresolver.New(leftGroups)
	if err != nil {
		return nil, fmt.Errorf("left half: %w", err)
	}
	rightResolver, err := halfresolver.New(rightGroups)
	if err != nil {
		return nil, fmt.Errorf("right half: %w", err)
	}

	built, err := keyboardcreator.Build(cfg.Layout)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	keyboard := vkeyboard.New(built.Keys, built.LayerOf, built.DefaultLayer, cfg.TapHoldTermMs)

	if len(cfg.Left.Devices) == 0 {
		return nil, fmt.Errorf("left half: no devices configured")
	}
	leftSource := hidio.NewEvdevSource(cfg.Left.Devices, codeToSerial(cfg.Left.KeyCodes))
	rightSource := hidio.NewEvdevSource(cfg.Right.Devices, codeToSerial(cfg.Right.KeyCodes))
	leftSource.Run()
	rightSource.Run()

	var rotary hidio.RotarySource
	if cfg.Left.RotaryDevice != "" {
		rotary = hidio.NewEvdevRotarySource(cfg.Left.RotaryDevice)
	}

	sink, err := hidio.NewEvdevSink("ergokb")
	if err != nil {
		return nil, fmt.Errorf("hid sink: %w", err)
	}

	return &pipeline{
		leftSource:    leftSource,
		rightSource:   rightSource,
		rotary:        rotary,
		leftResolver:  leftResolver,
		rightResolver: rightResolver,
		lk:            link.NewChanLink(64),
		keyboard:      keyboard,
		sink:          sink,
		recorder:      diagnostics.NewRecorder(7),
		typist:        diagnostics.NewTypist(built.ReactionTable),
		stats:         diagnostics.NewTickStats(100, 500),
		codeNames:     keyboardcreator.KeyCodeMap(built.ReactionTable),
	}, nil
}

// buildGroups turns one half's configured key groups, in the configured
// fan-out order, into keygroup.Groups.
func buildGroups(half config.Half, comboTermMs int64) ([]*keygroup.Group, error) {
	var groups []*keygroup.Group
	for _, name := range half.GroupOrder {
		def, ok := half.Groups[name]
		if !ok {
			return nil, fmt.Errorf("group_order names %q, but groups has no such entry", name)
		}

		var vkeys []keygroup.VKeyDef
		for vkeySerial, switches := range def.Switches {
			phys := make([]vkey.PhysicalKeySerial, len(switches))
			for i, s := range switches {
				phys[i] = vkey.PhysicalKeySerial(s)
			}
			vkeys = append(vkeys, keygroup.VKeyDef{Serial: vkey.Serial(vkeySerial), Switches: phys})
		}

		g, err := keygroup.New(keygroup.Serial(name), vkeys, comboTermMs)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// codeToSerial inverts a config.Half.KeyCodes table for hidio.EvdevSource,
// which keys its readings by raw evdev keycode.
func codeToSerial(keyCodes map[string]uint16) map[uint16]vkey.PhysicalKeySerial {
	m := make(map[uint16]vkey.PhysicalKeySerial, len(keyCodes))
	for serial, code := range keyCodes {
		m[code] = vkey.PhysicalKeySerial(serial)
	}
	return m
}

// run is the cooperative super-loop: poll local switches and the rotary
// encoder, drain the right half through the in-process link, step the
// virtual keyboard, and drive the HID sinks. One iteration per tick,
// suspended only by tickInterval between iterations.
func (p *pipeline) run() {
	if err := p.lk.WaitForStart(); err != nil {
		exitError(err, "Inter-half link handshake failed")
	}
	for {
		if err := p.tick(); err != nil {
			log.Warnf("super-loop: %v, pausing before retry", err)
			time.Sleep(errorBackoff)
			continue
		}
		time.Sleep(tickInterval)
	}
}

// tick runs exactly one iteration and recovers any panic from the
// pipeline as a runtime peripheral error: the virtual-keyboard state
// machine itself must be total, but a misbehaving peripheral adapter
// must never bring down the super-loop.
func (p *pipeline) tick() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered panic: %v", r)
		}
	}()

	start := time.Now()
	now := clock.System()

	rightPressed, rErr := p.rightSource.Pressed()
	if rErr != nil {
		return fmt.Errorf("right half: %w", rErr)
	}
	for _, ev := range p.rightResolver.Update(now, rightPressed) {
		ev := ev
		p.lk.Send(link.Item{VKey: &ev})
	}

	var wheelOffset int
	if p.rotary != nil {
		offset, rotErr := p.rotary.ReadOffset()
		if rotErr != nil {
			return fmt.Errorf("rotary: %w", rotErr)
		}
		wheelOffset = offset
	}

	remoteItems, linkErr := p.lk.ReadItems()
	if linkErr != nil {
		return fmt.Errorf("link: %w", linkErr)
	}

	var remoteEvents []vkey.Event
	for _, item := range remoteItems {
		switch {
		case item.Mouse != nil:
			if err := p.sink.MoveMouse(item.Mouse.DX, item.Mouse.DY); err != nil {
				return fmt.Errorf("mouse sink: %w", err)
			}
		case item.VKey != nil:
			remoteEvents = append(remoteEvents, *item.VKey)
		}
	}

	leftPressed, lErr := p.leftSource.Pressed()
	if lErr != nil {
		return fmt.Errorf("left half: %w", lErr)
	}
	localEvents := p.leftResolver.Update(now, leftPressed)

	// Remote events are drained first into the tick's queue, so local
	// events follow them.
	events := append(append([]vkey.Event{}, remoteEvents...), localEvents...)

	cmds := p.keyboard.Update(now, events)
	if wheelOffset != 0 {
		cmds = append(cmds, reactions.MouseWheel{Offset: wheelOffset})
	}

	for _, cmd := range cmds {
		if _, isLog := cmd.(reactions.Log); isLog {
			p.dumpLog()
			continue
		}
		if err := p.sink.Execute(cmd); err != nil {
			return fmt.Errorf("hid sink: %w", err)
		}
	}

	p.recorder.Record(diagnostics.Item{
		TimeMs:       now,
		LocalEvents:  localEvents,
		RemoteEvents: remoteEvents,
		ReactionCmds: cmds,
	})
	p.stats.Record(time.Since(start).Microseconds())

	return nil
}

// dumpLog implements the `Log` reaction: it renders the retained history
// as text and types it back out through the HID keyboard sink itself,
// since the running device has no other output channel.
func (p *pipeline) dumpLog() {
	text := diagnostics.Dump(p.recorder.Items(), p.codeNames)
	for _, cmd := range p.typist.TypeText(text) {
		if err := p.sink.Execute(cmd); err != nil {
			log.Warnf("log dump: %v", err)
			return
		}
	}
}

func (p *pipeline) close() {
	if err := p.leftSource.Close(); err != nil {
		log.Warnf("closing left half: %v", err)
	}
	if err := p.rightSource.Close(); err != nil {
		log.Warnf("closing right half: %v", err)
	}
	if err := p.sink.Close(); err != nil {
		log.Warnf("closing hid sink: %v", err)
	}
}

func exitError(err error, msg string) {
	if err != nil {
		log.Errorf(msg+": %v", err)
	} else {
		log.Error(msg)
	}
	log.Error("Exiting")
	os.Exit(1)
}
