// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"visbridge/internal/audio"
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

// pickerChrome is the number of lines around the viewport.
const pickerChrome = 4

// commonSampleRates are offered on the configuration screen alongside the
// device's own default.
var commonSampleRates = []float64{44100, 48000, 88200, 96000}

// Selection is the device and sample rate chosen in the picker.
type Selection struct {
	DeviceID   int
	DeviceName string
	SampleRate float64
}

// DeviceLoader returns the devices to offer.
type DeviceLoader func() ([]audio.Device, error)

// DevicePicker is a Bubble Tea model for choosing the capture device and
// its sample rate.
type DevicePicker struct {
	load          DeviceLoader
	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	// Configuration options
	availableSampleRates []float64
	sampleRateIndex      int

	chosen *Selection
	keys   pickerKeys
	help   help.Model
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// NewDevicePicker creates a picker that lists the devices returned by load.
func NewDevicePicker(load DeviceLoader) DevicePicker {
	return DevicePicker{
		load:         load,
		activeScreen: ListScreen,
		keys:         pickerKeys{keys},
		help:         help.New(),
	}
}

// Init fetches the devices.
func (m DevicePicker) Init() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		devices, err := load()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

// Update handles input and updates the model
func (m DevicePicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-pickerChrome)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - pickerChrome
		}
		m.help.Width = msg.Width
		m.refresh()

	case devicesMsg:
		m.devices = msg.devices
		m.selectedIndex = m.firstInput()
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if m.err != nil {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, m.keys.Up):
				m.moveSelection(-1)
			case key.Matches(msg, m.keys.Down):
				m.moveSelection(1)
			case key.Matches(msg, m.keys.Select):
				if m.selectable(m.selectedIndex) {
					m.openConfig()
				}
			}
		case ConfigScreen:
			switch {
			case key.Matches(msg, m.keys.Back):
				m.activeScreen = ListScreen
			case key.Matches(msg, m.keys.Up):
				if m.sampleRateIndex > 0 {
					m.sampleRateIndex--
				}
			case key.Matches(msg, m.keys.Down):
				if m.sampleRateIndex < len(m.availableSampleRates)-1 {
					m.sampleRateIndex++
				}
			case key.Matches(msg, m.keys.Select):
				d := m.devices[m.selectedIndex]
				m.chosen = &Selection{
					DeviceID:   d.ID,
					DeviceName: d.Name,
					SampleRate: m.availableSampleRates[m.sampleRateIndex],
				}
				return m, tea.Quit
			}
		}
		m.refresh()
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// refresh re-renders the active screen into the viewport.
func (m *DevicePicker) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ConfigScreen {
		m.viewport.SetContent(m.renderDeviceConfig())
	} else {
		m.viewport.SetContent(m.renderDevices())
	}
}

// selectable reports whether device i can capture audio.
func (m DevicePicker) selectable(i int) bool {
	return i >= 0 && i < len(m.devices) && m.devices[i].MaxInputChannels > 0
}

func (m DevicePicker) firstInput() int {
	for i := range m.devices {
		if m.selectable(i) {
			return i
		}
	}
	return 0
}

// moveSelection steps over output-only devices.
func (m *DevicePicker) moveSelection(step int) {
	for i := m.selectedIndex + step; i >= 0 && i < len(m.devices); i += step {
		if m.selectable(i) {
			m.selectedIndex = i
			return
		}
	}
}

// openConfig switches to the sample rate screen with the device default
// preselected.
func (m *DevicePicker) openConfig() {
	m.activeScreen = ConfigScreen
	def := m.devices[m.selectedIndex].DefaultSampleRate

	m.availableSampleRates = append([]float64(nil), commonSampleRates...)
	m.sampleRateIndex = -1
	for i, rate := range m.availableSampleRates {
		if rate == def {
			m.sampleRateIndex = i
			break
		}
	}
	if m.sampleRateIndex < 0 && def > 0 {
		m.availableSampleRates = append([]float64{def}, m.availableSampleRates...)
		m.sampleRateIndex = 0
	}
	if m.sampleRateIndex < 0 {
		m.sampleRateIndex = 0
	}
}

// View renders the UI
func (m DevicePicker) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress any key to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	var title string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Audio Input Devices")
	} else {
		title = titleStyle.Render("Device Configuration")
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), m.help.View(m.keys))
}

// renderDevices formats the device list
func (m DevicePicker) renderDevices() string {
	if len(m.devices) == 0 {
		return "No audio devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		deviceInfo := fmt.Sprintf("[%d] %s (%s)\n", device.ID, device.Name, device.Kind())
		deviceInfo += fmt.Sprintf("    Input channels: %d, Output channels: %d\n",
			device.MaxInputChannels, device.MaxOutputChannels)
		deviceInfo += fmt.Sprintf("    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)

		switch {
		case i == m.selectedIndex && m.selectable(i):
			deviceInfo = highlightStyle.Render(deviceInfo)
		case !m.selectable(i):
			deviceInfo = dimStyle.Render(deviceInfo)
		}

		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderDeviceConfig formats the device configuration screen
func (m DevicePicker) renderDeviceConfig() string {
	var sb strings.Builder
	device := m.devices[m.selectedIndex]

	sb.WriteString(fmt.Sprintf("Configure Device: %s\n\n", device.Name))
	sb.WriteString("Sample Rate:\n")

	for i, rate := range m.availableSampleRates {
		marker := " "
		if i == m.sampleRateIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz\n", marker, rate)
		if i == m.sampleRateIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// Selected returns the confirmed choice, if any.
func (m DevicePicker) Selected() (Selection, bool) {
	if m.chosen == nil {
		return Selection{}, false
	}
	return *m.chosen, true
}

// PickDevice runs the picker full screen and returns the choice. ok is
// false when the user quit without choosing.
func PickDevice(load DeviceLoader, opts ...tea.ProgramOption) (sel Selection, ok bool, err error) {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	final, err := tea.NewProgram(NewDevicePicker(load), opts...).Run()
	if err != nil {
		return Selection{}, false, err
	}
	picker, isPicker := final.(DevicePicker)
	if !isPicker {
		return Selection{}, false, nil
	}
	if picker.err != nil {
		return Selection{}, false, picker.err
	}
	sel, ok = picker.Selected()
	return sel, ok, nil
}

var _ tea.Model = DevicePicker{}
