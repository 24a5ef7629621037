// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package amf0 提供amf0格式的编码与解码的操作
//
// 编码既可以直接写入io.Writer，也可以使用只追加的 Builder
package amf0

import (
	"io"
	"math"

	"github.com/q191201771/lalflv/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
)

const (
	TypeMarkerNumber      = uint8(0x00)
	TypeMarkerBoolean     = uint8(0x01)
	TypeMarkerString      = uint8(0x02)
	TypeMarkerObject      = uint8(0x03)
	TypeMarkerNull        = uint8(0x05)
	TypeMarkerUndefined   = uint8(0x06)
	TypeMarkerEcmaArray   = uint8(0x08)
	TypeMarkerObjectEnd   = uint8(0x09)
	TypeMarkerStrictArray = uint8(0x0a)
	TypeMarkerLongString  = uint8(0x0c)
)

var ObjectEndBytes = []byte{0, 0, TypeMarkerObjectEnd}

const maxShortStringLength = 0xffff

type ObjectPair struct {
	Key   string
	Value interface{}
}

// ----- write ---------------------------------------------------------------------------------------------------------

func WriteNumber(writer io.Writer, val float64) error {
	b := make([]byte, 9)
	b[0] = TypeMarkerNumber
	bele.BePutUint64(b[1:], math.Float64bits(val))
	_, err := writer.Write(b)
	return err
}

func WriteBoolean(writer io.Writer, val bool) error {
	b := []byte{TypeMarkerBoolean, 0}
	if val {
		b[1] = 1
	}
	_, err := writer.Write(b)
	return err
}

// WriteString 长度超过65535时使用long string
func WriteString(writer io.Writer, val string) error {
	var b []byte
	if len(val) > maxShortStringLength {
		b = make([]byte, 5)
		b[0] = TypeMarkerLongString
		bele.BePutUint32(b[1:], uint32(len(val)))
	} else {
		b = make([]byte, 3)
		b[0] = TypeMarkerString
		bele.BePutUint16(b[1:], uint16(len(val)))
	}
	if _, err := writer.Write(b); err != nil {
		return err
	}
	_, err := writer.Write([]byte(val))
	return err
}

func WriteNull(writer io.Writer) error {
	_, err := writer.Write([]byte{TypeMarkerNull})
	return err
}

func WriteObjectEnd(writer io.Writer) error {
	_, err := writer.Write(ObjectEndBytes)
	return err
}

// WriteKey 写入object或ecma array成员的名字，不带类型
func WriteKey(writer io.Writer, key string) error {
	b := make([]byte, 2+len(key))
	bele.BePutUint16(b, uint16(len(key)))
	copy(b[2:], key)
	_, err := writer.Write(b)
	return err
}

func WriteObject(writer io.Writer, objs []ObjectPair) error {
	if _, err := writer.Write([]byte{TypeMarkerObject}); err != nil {
		return err
	}
	if err := writeProperties(writer, objs); err != nil {
		return err
	}
	return WriteObjectEnd(writer)
}

func WriteEcmaArray(writer io.Writer, objs []ObjectPair) error {
	b := make([]byte, 5)
	b[0] = TypeMarkerEcmaArray
	bele.BePutUint32(b[1:], uint32(len(objs)))
	if _, err := writer.Write(b); err != nil {
		return err
	}
	if err := writeProperties(writer, objs); err != nil {
		return err
	}
	return WriteObjectEnd(writer)
}

func writeProperties(writer io.Writer, objs []ObjectPair) error {
	for i := range objs {
		if err := WriteKey(writer, objs[i].Key); err != nil {
			return err
		}
		if err := WriteValue(writer, objs[i].Value); err != nil {
			return err
		}
	}
	return nil
}

// WriteValue 根据值的类型选择对应的写入函数
//
// 支持 float64, int, uint32, bool, string, nil, []ObjectPair（写为object）
func WriteValue(writer io.Writer, val interface{}) error {
	switch v := val.(type) {
	case float64:
		return WriteNumber(writer, v)
	case int:
		return WriteNumber(writer, float64(v))
	case uint32:
		return WriteNumber(writer, float64(v))
	case bool:
		return WriteBoolean(writer, v)
	case string:
		return WriteString(writer, v)
	case nil:
		return WriteNull(writer)
	case []ObjectPair:
		return WriteObject(writer, v)
	}
	return base.ErrAmfInvalidType
}

// ----- read ----------------------------------------------------------------------------------------------------------

// read类型的方法集合
//
// 从输入参数<b>切片中读取函数名所指定的amf类型数据
// 注意，方法内部不会修改输入参数<b>切片的内容
//
// 返回值如无特殊说明，则
// 第1个参数为读取出的所指定类型的数据
// 第2个参数为读取时从<b>消耗的字节大小
// 第3个参数error，如果不等于nil，表示读取失败

func ReadStringWithoutType(b []byte) (string, int, error) {
	if len(b) < 2 {
		return "", 0, base.ErrAmfTooShort
	}
	l := int(bele.BeUint16(b))
	if l > len(b)-2 {
		return "", 0, base.ErrAmfTooShort
	}
	return string(b[2 : 2+l]), 2 + l, nil
}

func ReadLongStringWithoutType(b []byte) (string, int, error) {
	if len(b) < 4 {
		return "", 0, base.ErrAmfTooShort
	}
	l := int(bele.BeUint32(b))
	if l > len(b)-4 {
		return "", 0, base.ErrAmfTooShort
	}
	return string(b[4 : 4+l]), 4 + l, nil
}

func ReadString(b []byte) (val string, l int, err error) {
	if len(b) < 1 {
		return "", 0, base.ErrAmfTooShort
	}
	switch b[0] {
	case TypeMarkerString:
		val, l, err = ReadStringWithoutType(b[1:])
	case TypeMarkerLongString:
		val, l, err = ReadLongStringWithoutType(b[1:])
	default:
		return "", 0, base.NewErrAmfInvalidType(b[0])
	}
	if err != nil {
		return "", 0, err
	}
	return val, l + 1, nil
}

func ReadNumber(b []byte) (float64, int, error) {
	if len(b) < 9 {
		return 0, 0, base.ErrAmfTooShort
	}
	if b[0] != TypeMarkerNumber {
		return 0, 0, base.NewErrAmfInvalidType(b[0])
	}
	return bele.BeFloat64(b[1:]), 9, nil
}

func ReadBoolean(b []byte) (bool, int, error) {
	if len(b) < 2 {
		return false, 0, base.ErrAmfTooShort
	}
	if b[0] != TypeMarkerBoolean {
		return false, 0, base.NewErrAmfInvalidType(b[0])
	}
	return b[1] != 0x0, 2, nil
}

func ReadNull(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, base.ErrAmfTooShort
	}
	if b[0] != TypeMarkerNull && b[0] != TypeMarkerUndefined {
		return 0, base.NewErrAmfInvalidType(b[0])
	}
	return 1, nil
}

func ReadObject(b []byte) (map[string]interface{}, int, error) {
	if len(b) < 1 {
		return nil, 0, base.ErrAmfTooShort
	}
	if b[0] != TypeMarkerObject {
		return nil, 0, base.NewErrAmfInvalidType(b[0])
	}
	obj, l, err := readProperties(b[1:])
	if err != nil {
		return nil, 0, err
	}
	return obj, 1 + l, nil
}

// ReadEcmaArray
//
// 注意，ecma array中的count字段只作参考，以object end作为结束标志
func ReadEcmaArray(b []byte) (map[string]interface{}, int, error) {
	if len(b) < 5 {
		return nil, 0, base.ErrAmfTooShort
	}
	if b[0] != TypeMarkerEcmaArray {
		return nil, 0, base.NewErrAmfInvalidType(b[0])
	}
	obj, l, err := readProperties(b[5:])
	if err != nil {
		return nil, 0, err
	}
	return obj, 5 + l, nil
}

// ReadValue 读取任意支持的类型
func ReadValue(b []byte) (interface{}, int, error) {
	if len(b) < 1 {
		return nil, 0, base.ErrAmfTooShort
	}
	var (
		v   interface{}
		l   int
		err error
	)
	switch b[0] {
	case TypeMarkerNumber:
		v, l, err = ReadNumber(b)
	case TypeMarkerBoolean:
		v, l, err = ReadBoolean(b)
	case TypeMarkerString, TypeMarkerLongString:
		v, l, err = ReadString(b)
	case TypeMarkerNull, TypeMarkerUndefined:
		l, err = ReadNull(b)
	case TypeMarkerObject:
		v, l, err = ReadObject(b)
	case TypeMarkerEcmaArray:
		v, l, err = ReadEcmaArray(b)
	case TypeMarkerStrictArray:
		v, l, err = readStrictArray(b)
	default:
		return nil, 0, base.NewErrAmfInvalidType(b[0])
	}
	if err != nil {
		return nil, 0, err
	}
	return v, l, nil
}

func readStrictArray(b []byte) ([]interface{}, int, error) {
	if len(b) < 5 {
		return nil, 0, base.ErrAmfTooShort
	}
	count := int(bele.BeUint32(b[1:]))
	index := 5
	var arr []interface{}
	for i := 0; i < count; i++ {
		v, l, err := ReadValue(b[index:])
		if err != nil {
			return nil, 0, err
		}
		arr = append(arr, v)
		index += l
	}
	return arr, index, nil
}

func readProperties(b []byte) (map[string]interface{}, int, error) {
	index := 0
	obj := make(map[string]interface{})
	for {
		if len(b)-index >= 3 && b[index] == 0 && b[index+1] == 0 && b[index+2] == TypeMarkerObjectEnd {
			return obj, index + 3, nil
		}

		k, l, err := ReadStringWithoutType(b[index:])
		if err != nil {
			return nil, 0, err
		}
		index += l
		v, l, err := ReadValue(b[index:])
		if err != nil {
			return nil, 0, err
		}
		obj[k] = v
		index += l
	}
}
