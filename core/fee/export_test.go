package fee

import "time"

// SetNowFunc pins the clock of the package until restore is called.
func SetNowFunc(f func() time.Time) (restore func()) {
	nowFunc = f
	return func() { nowFunc = time.Now }
}
