package utils

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
)

const (
	TMP_PREFIX = "."
	TMP_SUFFIX = ".tmp"
)

var (
	ErrNotRegularFile = errors.New("not a regular file")
)

// 在目标文件同目录下生成临时文件路径（保留扩展名，便于驱动识别格式），保证rename为同卷原子操作
func GetSiblingTmpPath(path string) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, TMP_PREFIX+name+"_"+uuid.NewString()+TMP_SUFFIX+ext)
}

// 在tmpDir（为空时为目标文件所在目录）下生成临时文件路径
func GetTmpPath(tmpDir, path string) string {
	if tmpDir == "" {
		return GetSiblingTmpPath(path)
	}
	return GetSiblingTmpPath(filepath.Join(tmpDir, filepath.Base(path)))
}

func GetFilenameWithoutExt(path string) (name string) {
	name = filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(path))
	return
}

// 小写扩展名
func GetExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// 用新扩展名替换原扩展名
func ReplaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

func FileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// 用src原子地替换dst，并沿用dst的文件权限；src与dst不在同一卷时先复制到dst同目录再rename
func ReplaceFile(src, dst string) (err error) {
	st, err := os.Stat(dst)
	if err != nil {
		return
	}
	if !st.Mode().IsRegular() {
		err = ErrNotRegularFile
		return
	}
	if err = os.Chmod(src, st.Mode().Perm()); err != nil {
		return
	}
	if err = os.Rename(src, dst); errors.Is(err, syscall.EXDEV) {
		err = moveAcross(src, dst, st.Mode().Perm())
	}
	return
}

func moveAcross(src, dst string, perm os.FileMode) (err error) {
	tmp := GetSiblingTmpPath(dst)
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()
	in, err := os.Open(src)
	if err != nil {
		return
	}
	defer in.Close()
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return
	}
	if _, err = io.Copy(out, in); err == nil {
		err = out.Sync()
	}
	if e := out.Close(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return
	}
	if err = os.Rename(tmp, dst); err != nil {
		return
	}
	os.Remove(src)
	return
}

// 删除主文件及GDAL生成的同名附属文件（如.aux.xml）
func RemoveWithSidecars(path string) {
	os.Remove(path)
	os.Remove(path + ".aux.xml")
	os.Remove(path + ".ovr")
}
