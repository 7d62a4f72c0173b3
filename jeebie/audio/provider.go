package audio

// Provider exposes the debug-facing surface of the APU: per-channel mute/solo
// controls and enabled status. There is no sample/waveform output here (see
// DESIGN.md) so this is the entire external contract beyond register access.
type Provider interface {
	ToggleChannel(channel int)
	SoloChannel(channel int)
	GetChannelStatus() (ch1, ch2, ch3, ch4 bool)
}

var _ Provider = (*APU)(nil)
