// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package flv

import (
	"os"

	"github.com/q191201771/lalflv/pkg/base"
)

// FileWriter 写flv文件，同时实现了 IFlvSink
type FileWriter struct {
	fp *os.File
}

func (ffw *FileWriter) Open(filename string) (err error) {
	ffw.fp, err = os.Create(filename)
	return
}

func (ffw *FileWriter) WriteRaw(b []byte) (err error) {
	if ffw.fp == nil {
		return base.ErrFlvFileNotOpen
	}
	_, err = ffw.fp.Write(b)
	return
}

func (ffw *FileWriter) WriteFlvHeader(b []byte) error {
	return ffw.WriteRaw(b)
}

func (ffw *FileWriter) WriteTag(b []byte, tagType uint8, timestamp uint32) error {
	return ffw.WriteRaw(b)
}

// UpdateAt 使用WriteAt覆盖，不影响后续顺序写入的位置
func (ffw *FileWriter) UpdateAt(offset int64, b []byte) (err error) {
	if ffw.fp == nil {
		return base.ErrFlvFileNotOpen
	}
	_, err = ffw.fp.WriteAt(b, offset)
	return
}

func (ffw *FileWriter) OnMuxingEnd() error {
	return ffw.Dispose()
}

func (ffw *FileWriter) Dispose() error {
	if ffw.fp == nil {
		return base.ErrFlvFileNotOpen
	}
	err := ffw.fp.Close()
	ffw.fp = nil
	return err
}

func (ffw *FileWriter) Name() string {
	if ffw.fp == nil {
		return ""
	}
	return ffw.fp.Name()
}
