package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gopedal/pkg/config"
	"github.com/itohio/gopedal/pkg/device"
	"github.com/itohio/gopedal/pkg/history"
	"github.com/itohio/gopedal/pkg/publish"
	"github.com/itohio/gopedal/pkg/record"
	"github.com/itohio/gopedal/pkg/recorder"
	"github.com/itohio/gopedal/pkg/scope"
	"github.com/itohio/gopedal/pkg/telemetry"
)

// frameBufferSize is the buffer of each fan-out branch.
const frameBufferSize = 500

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use simulated pedals instead of serial port")
		recordFlag = flag.Bool("record", false, "Start recording on connect (overrides config)")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override serial port if provided via command line
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *recordFlag {
		cfg.Recorder.Enabled = true
	}

	// Create Fyne application
	application := app.NewWithID("com.itohio.pedaltune")

	window := application.NewWindow("Pedal Tune")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		history:    history.New(time.Duration(cfg.History.WindowSeconds * float64(time.Second))),
		replies:    newReplyLog(replyLogSize),
		window:     window,
		useMock:    *mockFlag,
	}
	state.history.OnUpdate(state.throttledScopeUpdate)

	toolbar := createToolbar(state)

	state.scopeWidget = scope.New(&cfg.History)
	state.replyList = createReplyList(state)

	split := container.NewVSplit(state.scopeWidget, state.replyList)
	split.Offset = 0.75

	window.SetContent(container.NewBorder(toolbar, nil, nil, nil, split))
	window.SetOnClosed(func() {
		state.disconnect()
		state.closeRecorder()
	})
	window.ShowAndRun()
}

// pipeline tracks the goroutines consuming one device connection.
type pipeline struct {
	device    device.Device
	cancel    context.CancelFunc
	publisher *publish.Publisher
	wg        sync.WaitGroup
}

// appState holds the application state.
type appState struct {
	cfg         *config.Config
	configPath  string
	device      device.Device
	history     *history.History
	replies     *replyLog
	scopeWidget *scope.ScopeWidget
	replyList   *widget.List
	window      fyne.Window
	connectBtn  *widget.Button
	recordBtn   *widget.Button
	cmdButtons  []*widget.Button
	useMock     bool
	chain       *pipeline

	// Last configuration reported by the device
	recordMu   sync.RWMutex
	current    record.Record
	hasCurrent bool

	// Recording session, nil recorder until first use
	recMu     sync.Mutex
	rec       *recorder.Recorder
	sessionID string

	// Throttling for scope updates
	lastUpdateTime time.Time
	updateMu       sync.Mutex

	// Snapshot of replies shown by replyList, UI goroutine only
	replyLines []string
}

// createToolbar creates the application toolbar.
func createToolbar(state *appState) fyne.CanvasObject {
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	tuneBtn := widget.NewButtonWithIcon("Tune", theme.DocumentCreateIcon(), func() {
		showTuningDialog(state)
	})
	loadBtn := widget.NewButtonWithIcon("Load", theme.FolderOpenIcon(), func() {
		state.send("LOAD")
	})
	saveBtn := widget.NewButtonWithIcon("Save", theme.DocumentSaveIcon(), func() {
		state.send("SAVE")
	})
	printBtn := widget.NewButtonWithIcon("Print", theme.InfoIcon(), func() {
		state.send("PRINT")
	})
	resetBtn := widget.NewButtonWithIcon("Reset", theme.HistoryIcon(), func() {
		dialog.ShowConfirm("Reset configuration",
			"Restore factory defaults and write them to device storage?",
			func(ok bool) {
				if ok {
					state.send("RESETCONFIG")
				}
			}, state.window)
	})
	autocalBtn := widget.NewButtonWithIcon("Auto-calibrate", theme.SearchIcon(), func() {
		handleAutocal(state)
	})
	recordBtn := widget.NewButtonWithIcon("", theme.MediaRecordIcon(), func() {
		handleRecordToggle(state)
	})
	state.recordBtn = recordBtn

	state.cmdButtons = []*widget.Button{tuneBtn, loadBtn, saveBtn, printBtn, resetBtn, autocalBtn}
	for _, b := range state.cmdButtons {
		b.Disable()
	}

	return container.NewBorder(
		nil, // top
		nil, // bottom
		container.NewHBox(connectBtn, settingsBtn, widget.NewSeparator(), tuneBtn, loadBtn, saveBtn, printBtn, resetBtn), // left
		container.NewHBox(autocalBtn, recordBtn), // right
		nil, // center (spacer)
	)
}

// createReplyList creates the list showing device replies, newest last.
func createReplyList(state *appState) *widget.List {
	return widget.NewList(
		func() int { return len(state.replyLines) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, o fyne.CanvasObject) {
			o.(*widget.Label).SetText(state.replyLines[id])
		},
	)
}

// throttledScopeUpdate pushes history to the scope at most ~60 times per second.
func (state *appState) throttledScopeUpdate(frames []telemetry.Frame) {
	const updateInterval = 16 * time.Millisecond

	state.updateMu.Lock()
	now := time.Now()
	if now.Sub(state.lastUpdateTime) < updateInterval {
		state.updateMu.Unlock()
		return
	}
	state.lastUpdateTime = now
	state.updateMu.Unlock()

	fyne.Do(func() {
		state.scopeWidget.UpdateData(frames)
	})
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.device != nil && state.device.IsConnected() {
		state.disconnect()
		if state.useMock {
			fmt.Println("Disconnected from simulated pedals")
		} else {
			fmt.Println("Disconnected from serial port")
		}
		return
	}

	var dev device.Device
	if state.useMock {
		dev = device.NewMock(&state.cfg.Mock)
		fmt.Println("Using simulated pedals")
	} else {
		dev = device.NewSerial(state.cfg.Serial.Port, state.cfg.Serial.BaudRate, device.DefaultBufferSize)
	}

	if err := dev.Connect(); err != nil {
		if state.useMock {
			dialog.ShowError(fmt.Errorf("failed to start simulated pedals: %w", err), state.window)
		} else {
			dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", state.cfg.Serial.Port, err), state.window)
		}
		return
	}
	state.device = dev
	if !state.useMock {
		fmt.Printf("Connected to serial port: %s\n", state.cfg.Serial.Port)
	}

	state.history.Reset()
	state.recordMu.Lock()
	state.hasCurrent = false
	state.recordMu.Unlock()

	chain := &pipeline{device: dev}
	ctx, cancel := context.WithCancel(context.Background())
	chain.cancel = cancel

	// History always consumes frames; the recorder branch is cheap when
	// no session is active.
	consumers := []func(<-chan telemetry.Frame){
		state.history.Process,
		state.recordFrames,
	}

	if state.cfg.MQTT.Enabled {
		client, err := publish.Connect(state.cfg.MQTT)
		if err != nil {
			log.Printf("MQTT bridge disabled: %v", err)
		} else {
			chain.publisher = publish.New(client, state.cfg.MQTT.Topic)
			consumers = append(consumers, func(frames <-chan telemetry.Frame) {
				if err := chain.publisher.Forward(ctx, frames); err != nil && ctx.Err() == nil {
					log.Printf("MQTT forwarding stopped: %v", err)
				}
				// keep draining so the fan-out never blocks
				for range frames {
				}
			})
		}
	}

	branches := fanOut(dev.Frames(), len(consumers), frameBufferSize)
	for i, consume := range consumers {
		chain.wg.Add(1)
		go func(in <-chan telemetry.Frame) {
			defer chain.wg.Done()
			consume(in)
		}(branches[i])
	}

	chain.wg.Add(1)
	go func() {
		defer chain.wg.Done()
		state.processReplies(dev.Replies())
	}()

	state.chain = chain

	for _, b := range state.cmdButtons {
		b.Enable()
	}
	if state.cfg.Recorder.Enabled {
		startRecording(state)
	}
	state.send("PRINT")
}

// disconnect closes the device and waits for every consumer to drain.
func (state *appState) disconnect() {
	chain := state.chain
	if chain == nil {
		return
	}
	state.chain = nil
	state.device = nil

	// Closing the device closes its frame and reply channels, which ends
	// every consumer.
	if err := chain.device.Close(); err != nil {
		log.Printf("error closing device: %v", err)
	}
	chain.cancel()
	chain.wg.Wait()
	if chain.publisher != nil {
		chain.publisher.Close()
	}

	stopRecording(state)
	for _, b := range state.cmdButtons {
		b.Disable()
	}
}

// send writes a command line to the device and logs it.
func (state *appState) send(cmd string) {
	if state.device == nil || !state.device.IsConnected() {
		dialog.ShowInformation("Not connected", "Connect to the pedals first.", state.window)
		return
	}
	if err := state.device.Send(cmd); err != nil {
		dialog.ShowError(fmt.Errorf("failed to send %q: %w", cmd, err), state.window)
		return
	}
	state.appendReply("> " + cmd)
}

// processReplies logs every reply and tracks configuration dumps.
func (state *appState) processReplies(replies <-chan string) {
	for line := range replies {
		if record.IsStatus(line) {
			r, err := record.ParseStatus(line)
			if err != nil {
				log.Printf("ignoring malformed configuration dump: %v", err)
			} else {
				state.recordMu.Lock()
				state.current = r
				state.hasCurrent = true
				state.recordMu.Unlock()
			}
		}
		state.appendReply(line)
	}
}

// appendReply adds a line to the reply log and refreshes the list.
func (state *appState) appendReply(line string) {
	state.replies.Add(line)
	lines := state.replies.Lines()
	fyne.Do(func() {
		state.replyLines = lines
		state.replyList.Refresh()
		state.replyList.ScrollToBottom()
	})
}

// currentRecord returns the last configuration reported by the device.
func (state *appState) currentRecord() (record.Record, bool) {
	state.recordMu.RLock()
	defer state.recordMu.RUnlock()
	return state.current, state.hasCurrent
}
