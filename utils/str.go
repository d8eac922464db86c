package utils

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// GBK 转 UTF-8
func GbkToUtf8(s []byte) (d []byte, e error) {
	reader := transform.NewReader(bytes.NewReader(s), simplifiedchinese.GBK.NewDecoder())
	d, e = io.ReadAll(reader)
	return
}

// UTF-8 转 GBK
func Utf8ToGbk(s []byte) (d []byte, e error) {
	reader := transform.NewReader(bytes.NewReader(s), simplifiedchinese.GBK.NewEncoder())
	d, e = io.ReadAll(reader)
	return
}

// 判断是否GBK系编码名
func IsGbkCharset(label string) bool {
	switch strings.ToUpper(strings.ReplaceAll(label, "-", "")) {
	case "GBK", "GB2312", "GB18030", "CP936":
		return true
	}
	return false
}

// 按编码名包装reader，供xml.Decoder.CharsetReader使用
func CharsetReader(label string, input io.Reader) (io.Reader, error) {
	if IsGbkCharset(label) {
		return transform.NewReader(input, simplifiedchinese.GBK.NewDecoder()), nil
	}
	return input, nil
}

// 非UTF-8的文本按GBK解码
func EnsureUtf8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	if d, e := GbkToUtf8([]byte(s)); e == nil {
		return PurifyForUtf8(string(d))
	}
	return PurifyForUtf8(s)
}

func PurifyForUtf8(s string) string {
	return strings.ToValidUTF8(strings.ReplaceAll(s, "\x00", ""), "")
}
