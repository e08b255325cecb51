package pack

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
)

// ImportLibraries are the ffmpeg import libraries that the windows build
// installs into bin instead of lib.
var ImportLibraries = []string{
	"avcodec", "avdevice", "avfilter", "avformat",
	"avutil", "postproc", "swresample", "swscale",
}

// MinGWRuntime are the DLLs of the MinGW toolchain the libraries link to.
var MinGWRuntime = []string{
	"libgcc_s_seh-1.dll",
	"libiconv-2.dll",
	"libstdc++-6.dll",
	"libwinpthread-1.dll",
	"zlib1.dll",
}

// FixWindowsLayout moves import libraries from bin to lib and copies the
// MinGW runtime DLLs from mingwBin into bin. An empty mingwBin means the
// directory of the gcc found on PATH.
func FixWindowsLayout(dest, mingwBin string) error {
	for _, name := range ImportLibraries {
		src := filepath.Join(dest, "bin", name+".lib")
		err := os.Rename(src, filepath.Join(dest, "lib", name+".lib"))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if mingwBin == "" {
		gcc, err := exec.LookPath("gcc")
		if err != nil {
			return err
		}
		mingwBin = filepath.Dir(gcc)
	}
	for _, name := range MinGWRuntime {
		if err := copyFile(filepath.Join(mingwBin, name), filepath.Join(dest, "bin", name)); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	return errors.Join(err, out.Close())
}
