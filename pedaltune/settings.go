package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gopedal/pkg/command"
	"github.com/itohio/gopedal/pkg/device"
	"github.com/itohio/gopedal/pkg/record"
)

// showSettingsDialog displays a settings dialog with tabs for the host
// configuration.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createHistoryTab(state),
		createRecorderTab(state),
		createMQTTTab(state),
		createAutocalTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

func (state *appState) saveConfig() {
	if err := state.cfg.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
	}
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	ports, err := device.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Map display name to actual port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	// Add current port if not in list
	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.BaudRate))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			selectedPort := state.cfg.Serial.Port
			if portSelect.Selected != "" {
				selectedPort = portMap[portSelect.Selected]
				if selectedPort == "" {
					selectedPort = portSelect.Selected
				}
			}
			baud := state.cfg.Serial.BaudRate
			if b, err := strconv.Atoi(baudEntry.Text); err == nil && b > 0 {
				baud = b
			}

			changed := state.cfg.Serial.Port != selectedPort || state.cfg.Serial.BaudRate != baud
			wasConnected := state.device != nil && state.device.IsConnected()

			state.cfg.Serial.Port = selectedPort
			state.cfg.Serial.BaudRate = baud
			state.saveConfig()

			// Reconnect with the new port settings
			if changed && wasConnected && !state.useMock {
				state.disconnect()
				handleConnect(state)
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createHistoryTab creates the plot history tab. Changes apply on restart.
func createHistoryTab(state *appState) *container.TabItem {
	windowEntry := widget.NewEntry()
	windowEntry.SetText(fmt.Sprintf("%.1f", state.cfg.History.WindowSeconds))

	pointsEntry := widget.NewEntry()
	pointsEntry.SetText(strconv.Itoa(state.cfg.History.MaxPoints))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Window (seconds)", Widget: windowEntry},
			{Text: "Plot Points", Widget: pointsEntry},
		},
		OnSubmit: func() {
			if ws, err := strconv.ParseFloat(windowEntry.Text, 64); err == nil && ws > 0 {
				state.cfg.History.WindowSeconds = ws
			}
			if mp, err := strconv.Atoi(pointsEntry.Text); err == nil && mp > 0 {
				state.cfg.History.MaxPoints = mp
			}
			state.saveConfig()
		},
	}

	return container.NewTabItem("History", form)
}

// createRecorderTab creates the telemetry recorder tab.
func createRecorderTab(state *appState) *container.TabItem {
	enabledCheck := widget.NewCheck("Record on connect", nil)
	enabledCheck.SetChecked(state.cfg.Recorder.Enabled)

	pathEntry := widget.NewEntry()
	pathEntry.SetText(state.cfg.Recorder.Path)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Auto Start", Widget: enabledCheck},
			{Text: "Database", Widget: pathEntry},
		},
		OnSubmit: func() {
			state.cfg.Recorder.Enabled = enabledCheck.Checked
			if pathEntry.Text != "" && pathEntry.Text != state.cfg.Recorder.Path {
				state.cfg.Recorder.Path = pathEntry.Text
				// reopen on next recording
				stopRecording(state)
				state.closeRecorder()
			}
			state.saveConfig()
		},
	}

	return container.NewTabItem("Recorder", form)
}

// createMQTTTab creates the MQTT bridge tab. Changes apply on next connect.
func createMQTTTab(state *appState) *container.TabItem {
	enabledCheck := widget.NewCheck("Publish telemetry", nil)
	enabledCheck.SetChecked(state.cfg.MQTT.Enabled)

	brokerEntry := widget.NewEntry()
	brokerEntry.SetText(state.cfg.MQTT.Broker)

	topicEntry := widget.NewEntry()
	topicEntry.SetText(state.cfg.MQTT.Topic)

	clientEntry := widget.NewEntry()
	clientEntry.SetText(state.cfg.MQTT.ClientID)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Enabled", Widget: enabledCheck},
			{Text: "Broker", Widget: brokerEntry},
			{Text: "Topic", Widget: topicEntry},
			{Text: "Client ID", Widget: clientEntry},
		},
		OnSubmit: func() {
			state.cfg.MQTT.Enabled = enabledCheck.Checked
			if brokerEntry.Text != "" {
				state.cfg.MQTT.Broker = brokerEntry.Text
			}
			if topicEntry.Text != "" {
				state.cfg.MQTT.Topic = topicEntry.Text
			}
			if clientEntry.Text != "" {
				state.cfg.MQTT.ClientID = clientEntry.Text
			}
			state.saveConfig()
		},
	}

	return container.NewTabItem("MQTT", form)
}

// createAutocalTab creates the auto-calibration tab.
func createAutocalTab(state *appState) *container.TabItem {
	lowEntry := widget.NewEntry()
	lowEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Autocal.LowQuantile))

	highEntry := widget.NewEntry()
	highEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Autocal.HighQuantile))

	marginEntry := widget.NewEntry()
	marginEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Autocal.Margin))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Released Quantile", Widget: lowEntry},
			{Text: "Pressed Quantile", Widget: highEntry},
			{Text: "Margin (fraction)", Widget: marginEntry},
		},
		OnSubmit: func() {
			low, errLow := strconv.ParseFloat(lowEntry.Text, 64)
			high, errHigh := strconv.ParseFloat(highEntry.Text, 64)
			if errLow == nil && errHigh == nil && 0 <= low && low < high && high <= 1 {
				state.cfg.Autocal.LowQuantile = low
				state.cfg.Autocal.HighQuantile = high
			}
			if m, err := strconv.ParseFloat(marginEntry.Text, 64); err == nil && m >= 0 {
				state.cfg.Autocal.Margin = m
			}
			state.saveConfig()
		},
	}

	return container.NewTabItem("Auto-calibrate", form)
}

// createMockTab creates the simulated pedals tab.
func createMockTab(state *appState) *container.TabItem {
	sampleRateEntry := widget.NewEntry()
	sampleRateEntry.SetText(state.cfg.Mock.SampleRate.String())

	pressPeriodEntry := widget.NewEntry()
	pressPeriodEntry.SetText(state.cfg.Mock.PressPeriod.String())

	noiseLevelEntry := widget.NewEntry()
	noiseLevelEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Mock.NoiseLevel))

	storageEntry := widget.NewEntry()
	storageEntry.SetText(state.cfg.Mock.StoragePath)
	storageEntry.SetPlaceHolder("in memory")

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Cycle Period", Widget: sampleRateEntry},
			{Text: "Press Period", Widget: pressPeriodEntry},
			{Text: "Noise Level (counts)", Widget: noiseLevelEntry},
			{Text: "Storage File", Widget: storageEntry},
		},
		OnSubmit: func() {
			if sr, err := time.ParseDuration(sampleRateEntry.Text); err == nil {
				state.cfg.Mock.SampleRate = sr
			}
			if pp, err := time.ParseDuration(pressPeriodEntry.Text); err == nil {
				state.cfg.Mock.PressPeriod = pp
			}
			if nl, err := strconv.ParseFloat(noiseLevelEntry.Text, 64); err == nil {
				state.cfg.Mock.NoiseLevel = nl
			}
			state.cfg.Mock.StoragePath = storageEntry.Text
			state.saveConfig()
		},
	}

	return container.NewTabItem("Mock", form)
}

// showTuningDialog shows one entry per device key and sends a SET for
// every changed value.
func showTuningDialog(state *appState) {
	current, ok := state.currentRecord()
	if !ok {
		state.send("PRINT")
		dialog.ShowInformation("Tune", "Waiting for the device configuration, try again in a moment.", state.window)
		return
	}

	keys := command.Keys()
	entries := make([]*widget.Entry, len(keys))
	items := make([]*widget.FormItem, len(keys))
	for i, k := range keys {
		value, _ := command.Value(current, k.Name)
		entries[i] = widget.NewEntry()
		entries[i].SetText(value)
		entries[i].Validator = func(text string) error { return checkValue(k, text) }
		items[i] = widget.NewFormItem(k.Name, entries[i])
		items[i].HintText = k.Description
	}

	d := dialog.NewForm("Tune Pedals", "Apply", "Cancel", items, func(apply bool) {
		if !apply {
			return
		}
		sent := false
		for i, k := range keys {
			if err := checkValue(k, entries[i].Text); err != nil {
				continue
			}
			if cmd, ok := setCommand(current, k.Name, entries[i].Text); ok {
				state.send(cmd)
				sent = true
			}
		}
		if sent {
			state.send("PRINT")
		}
	}, state.window)
	d.Resize(fyne.NewSize(500, 700))
	d.Show()
}

// setCommand returns the SET line for key when text differs from the
// current value. Range checks are left to the device.
func setCommand(current record.Record, key, text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	if value, ok := command.Value(current, key); ok && value == text {
		return "", false
	}
	return fmt.Sprintf("SET %s %s", key, text), true
}

// checkValue rejects text that cannot be the value of k before it reaches
// the device. Range checks stay on the device. Blank text is accepted and
// leaves the key unchanged.
func checkValue(k command.Key, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if k.IsFloat() {
		if _, err := strconv.ParseFloat(text, 32); err != nil {
			return fmt.Errorf("%s takes a decimal number", k.Name)
		}
		return nil
	}
	if _, err := strconv.ParseInt(text, 10, 32); err != nil {
		return fmt.Errorf("%s takes a whole number", k.Name)
	}
	return nil
}
