package domain

const (
	SNRGood  = float64(-7)
	SNRFair  = float64(-15)
	RSSIGood = -115
	RSSIFair = -126
)

type SignalQuality int

const (
	SignalUnknown SignalQuality = iota
	SignalBad
	SignalFair
	SignalGood
)

// DetermineSignalQuality classifies reception quality using the thresholds
// the Meshtastic Android signal indicator uses.
func DetermineSignalQuality(snr float64, rssi int) SignalQuality {
	if rssi == 0 {
		return SignalUnknown
	}
	if snr >= SNRGood && rssi >= RSSIGood {
		return SignalGood
	}
	if snr >= SNRFair && rssi >= RSSIFair {
		return SignalFair
	}

	return SignalBad
}
