package system

import (
	"math"

	"github.com/yanliu110/ALmoMD/pkg/units"
	"github.com/yanliu110/ALmoMD/pkg/utils"
)

// InitVelocities draws Maxwell-Boltzmann velocities at the given bath
// temperature and removes the net momentum afterwards. Per component
// the draw is normal with variance kB*T/m.
func (c *Configuration) InitVelocities(rng *utils.RandSource, tempK float64) {
	kT := units.KelvinToEnergy(tempK)
	for i := 0; i < c.Len(); i++ {
		sigma := math.Sqrt(kT / c.Masses[i])
		for j := 0; j < 3; j++ {
			c.Velocities.Set(i, j, rng.NormFloat64(0, sigma))
		}
	}
	c.ZeroMomentum()
}
