package replisim

import "github.com/go-gl/mathgl/mgl64"

// Vec3 is a 3D double-precision vector. Particles, granules, and the
// diffusion domain are all expressed in this space.
type Vec3 = mgl64.Vec3

// Mat3 backs the reflection candidate solve in IsotropicDiffusion.
type Mat3 = mgl64.Mat3
