package button

// Resolve returns the effective thresholds for a channel: every non-zero
// override in cfg wins over the matching global value.
func Resolve(global TimingConfig, cfg ChannelConfig) TimingConfig {
	return TimingConfig{
		Debounce:          pick(cfg.Debounce, global.Debounce),
		ShortPressMin:     pick(cfg.ShortPressMin, global.ShortPressMin),
		LongPressMin:      pick(cfg.LongPressMin, global.LongPressMin),
		DoubleClickMaxGap: pick(cfg.DoubleClickMaxGap, global.DoubleClickMaxGap),
	}
}

func pick(override, global uint32) uint32 {
	if override != 0 {
		return override
	}
	return global
}
