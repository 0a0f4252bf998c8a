// Package hostinfo reports the CPU capabilities relevant to the kernels.
// The kernels themselves key SIMD use off the stdlib simd package; this
// summary exists for the version and benchmark commands so results can be
// attributed to the hardware they ran on.
package hostinfo

import (
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// Features is a snapshot of the host CPU features the kernels care about.
type Features struct {
	Arch string

	// x86
	AVX2   bool
	AVX512 bool

	// arm64
	ASIMD bool
	SVE   bool
}

// Detect reads the host CPU features.
func Detect() Features {
	return Features{
		Arch:   runtime.GOARCH,
		AVX2:   cpu.X86.HasAVX2,
		AVX512: cpu.X86.HasAVX512F,
		ASIMD:  cpu.ARM64.HasASIMD,
		SVE:    cpu.ARM64.HasSVE,
	}
}

// String renders the detected features as "arch [feat feat ...]".
func (f Features) String() string {
	var feats []string
	if f.AVX2 {
		feats = append(feats, "avx2")
	}
	if f.AVX512 {
		feats = append(feats, "avx512")
	}
	if f.ASIMD {
		feats = append(feats, "asimd")
	}
	if f.SVE {
		feats = append(feats, "sve")
	}
	if len(feats) == 0 {
		return f.Arch
	}
	return fmt.Sprintf("%s [%s]", f.Arch, strings.Join(feats, " "))
}
