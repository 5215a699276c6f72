package forecast

// SolcastAzimuth converts an azimuth from the 0=South convention
// (-90=East, 90=West) to Solcast's 0=North convention, normalized to
// (-180, 180].
func SolcastAzimuth(southBased float64) float64 {
	az := southBased + 180
	for az > 180 {
		az -= 360
	}
	for az <= -180 {
		az += 360
	}
	return az
}
