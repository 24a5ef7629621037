// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package flv

import (
	"bufio"
	"errors"
	"io"
	"os"

	"github.com/q191201771/lalflv/pkg/base"
)

type FileReader struct {
	fp *os.File
	rd *bufio.Reader
}

func (ffr *FileReader) Open(filename string) (err error) {
	if ffr.fp, err = os.Open(filename); err != nil {
		return
	}
	ffr.rd = bufio.NewReader(ffr.fp)
	return
}

// ReadFlvHeader 读取9字节的flv header，以及4字节的PreviousTagSize0
func (ffr *FileReader) ReadFlvHeader() ([]byte, error) {
	if ffr.rd == nil {
		return nil, base.ErrFlvFileNotOpen
	}
	flvHeader := make([]byte, FlvHeaderWithPrevTagSize)
	if _, err := io.ReadFull(ffr.rd, flvHeader); err != nil {
		return flvHeader, err
	}
	if _, _, err := ParseFlvHeader(flvHeader); err != nil {
		return flvHeader, err
	}
	return flvHeader, nil
}

func (ffr *FileReader) ReadTag() (Tag, error) {
	if ffr.rd == nil {
		return Tag{}, base.ErrFlvFileNotOpen
	}
	return ReadTag(ffr.rd)
}

func (ffr *FileReader) Dispose() {
	if ffr.fp != nil {
		_ = ffr.fp.Close()
	}
}

// ReadAllTagsFromFlvFile 读取flv文件中的所有tag
func ReadAllTagsFromFlvFile(filename string) ([]Tag, error) {
	var tags []Tag

	var ffr FileReader
	defer ffr.Dispose()
	if err := ffr.Open(filename); err != nil {
		return nil, err
	}
	if _, err := ffr.ReadFlvHeader(); err != nil {
		return nil, err
	}

	for {
		tag, err := ffr.ReadTag()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return tags, nil
			}
			return tags, err
		}
		tags = append(tags, tag)
	}
}
