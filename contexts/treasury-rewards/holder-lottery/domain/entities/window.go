package entities

import "time"

type WindowTiming struct {
	WindowID         int64
	Start            time.Time
	End              time.Time
	ServerTime       time.Time
	SecondsRemaining int64
}
