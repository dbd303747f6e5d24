// Package units defines the internal unit system of the sampler:
// lengths in angstrom, energies in electronvolt, masses in atomic mass
// units. The derived time unit is then A*sqrt(amu/eV), so externally
// supplied femtosecond timesteps are converted with Fs.
package units

const (
	// KB is the Boltzmann constant in eV/K.
	KB = 8.617330337217213e-05

	// Fs is one femtosecond expressed in internal time units.
	Fs = 0.09822694788464063

	// Ps is one picosecond expressed in internal time units.
	Ps = 1000 * Fs
)

// KelvinToEnergy converts a temperature in kelvin to thermal energy in eV.
func KelvinToEnergy(tempK float64) float64 {
	return tempK * KB
}

// EnergyToKelvin converts a thermal energy in eV to a temperature in kelvin.
func EnergyToKelvin(e float64) float64 {
	return e / KB
}

// FsToInternal converts a duration in femtoseconds to internal time units.
func FsToInternal(fs float64) float64 {
	return fs * Fs
}

// InternalToPs converts a duration in internal time units to picoseconds.
func InternalToPs(t float64) float64 {
	return t / Ps
}
