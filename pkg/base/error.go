// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"errors"
	"fmt"
)

// ----- 通用的 ---------------------------------------------------------------------------------------------------------

var (
	ErrShortBuffer  = errors.New("lalflv: buffer too short")
	ErrFileNotExist = errors.New("lalflv: file not exist")
)

func NewErrShortBuffer(need, actual int, msg string) error {
	return fmt.Errorf("%w. need=%d, actual=%d, msg=%s", ErrShortBuffer, need, actual, msg)
}

// ----- pkg/bitrw -----------------------------------------------------------------------------------------------------

var ErrGolomb = errors.New("lalflv.bitrw: invalid exp-golomb code")

// ----- pkg/aac -------------------------------------------------------------------------------------------------------

var (
	ErrAac                    = errors.New("lalflv.aac: fxxk")
	ErrAdtsSyncword           = errors.New("lalflv.aac: invalid adts syncword")
	ErrAdtsFrameLength        = errors.New("lalflv.aac: adts frame length exceeds 13 bits")
	ErrSamplingFrequencyIndex = errors.New("lalflv.aac: invalid sampling frequency index")
)

func NewErrAdtsFrameLength(frameLength int) error {
	return fmt.Errorf("%w. frame length=%d", ErrAdtsFrameLength, frameLength)
}

func NewErrAdtsSyncword(syncword uint16) error {
	return fmt.Errorf("%w. syncword=0x%x", ErrAdtsSyncword, syncword)
}

// ----- pkg/avc -------------------------------------------------------------------------------------------------------

var (
	ErrAvc         = errors.New("lalflv.avc: fxxk")
	ErrAvcNotSps   = errors.New("lalflv.avc: nalu is not sps")
	ErrAvcNaluSize = errors.New("lalflv.avc: nalu size too large")
)

// ----- pkg/amf0 ------------------------------------------------------------------------------------------------------

var (
	ErrAmfInvalidType = errors.New("lalflv.amf0: invalid amf0 type")
	ErrAmfTooShort    = errors.New("lalflv.amf0: too short to unmarshal amf0 data")
	ErrAmfNotExist    = errors.New("lalflv.amf0: not exist")
)

func NewErrAmfInvalidType(b byte) error {
	return fmt.Errorf("%w. b=%d", ErrAmfInvalidType, b)
}

// ----- pkg/flv -------------------------------------------------------------------------------------------------------

var (
	ErrFlv              = errors.New("lalflv.flv: fxxk")
	ErrFlvFileNotOpen   = errors.New("lalflv.flv: file not open")
	ErrFlvSinkNotSeek   = errors.New("lalflv.flv: sink does not support update")
	ErrFlvInvalidHeader = errors.New("lalflv.flv: invalid flv header")
	ErrFlvTagTooLarge   = errors.New("lalflv.flv: tag data size exceeds 24 bits")
)

func NewErrFlvTagTooLarge(dataSize int) error {
	return fmt.Errorf("%w. data size=%d", ErrFlvTagTooLarge, dataSize)
}

// ----- pkg/remux -----------------------------------------------------------------------------------------------------

var (
	ErrRemux             = errors.New("lalflv.remux: fxxk")
	ErrRemuxNoAudioVideo = errors.New("lalflv.remux: neither audio nor video enabled")
	ErrRemuxMetadataSize = errors.New("lalflv.remux: metadata size changed")
	ErrRemuxSinkBroken   = errors.New("lalflv.remux: sink broken by previous error")
	ErrRemuxFinalized    = errors.New("lalflv.remux: muxer already finalized")
	ErrRemuxNoAsc        = errors.New("lalflv.remux: raw aac fed before audio specific config")
)

func NewErrRemuxMetadataSize(placeholder, final int) error {
	return fmt.Errorf("%w. placeholder=%d, final=%d", ErrRemuxMetadataSize, placeholder, final)
}

// ----- pkg/mpegts ----------------------------------------------------------------------------------------------------

var ErrMpegts = errors.New("lalflv.mpegts: fxxk")

func NewErrMpegts(err error) error {
	return fmt.Errorf("%w. err=%v", ErrMpegts, err)
}

// ---------------------------------------------------------------------------------------------------------------------
