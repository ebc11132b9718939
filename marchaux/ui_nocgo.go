//go:build tinygo || !cgo

package marchaux

import (
	"errors"

	"github.com/soypat/glmarch/glbuild"
)

func ui(s glbuild.Shader3D, cfg UIConfig) error {
	return errors.New("require cgo for UI rendering")
}
