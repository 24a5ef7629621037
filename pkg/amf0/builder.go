// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package amf0

import (
	"bytes"

	"github.com/q191201771/naza/pkg/bele"
)

// Builder 只追加的amf0编码buffer
//
// 写入内存不会失败，所以Put类的方法都不返回错误
type Builder struct {
	buf bytes.Buffer
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) PutNumber(val float64) *Builder {
	_ = WriteNumber(&b.buf, val)
	return b
}

func (b *Builder) PutBoolean(val bool) *Builder {
	_ = WriteBoolean(&b.buf, val)
	return b
}

func (b *Builder) PutString(val string) *Builder {
	_ = WriteString(&b.buf, val)
	return b
}

func (b *Builder) PutNull() *Builder {
	_ = WriteNull(&b.buf)
	return b
}

func (b *Builder) PutObjectEnd() *Builder {
	_ = WriteObjectEnd(&b.buf)
	return b
}

// PutNamedNumber 写入object或ecma array的一个成员，名字和值之间没有分隔符
func (b *Builder) PutNamedNumber(name string, val float64) *Builder {
	_ = WriteKey(&b.buf, name)
	return b.PutNumber(val)
}

func (b *Builder) PutNamedBoolean(name string, val bool) *Builder {
	_ = WriteKey(&b.buf, name)
	return b.PutBoolean(val)
}

func (b *Builder) PutNamedString(name string, val string) *Builder {
	_ = WriteKey(&b.buf, name)
	return b.PutString(val)
}

// PutNamedEcmaArray 写入字符串 `name` ，然后是ecma array
//
// 用于生成 "onMetaData" + ecma array 形式的script data
//
// @param count:    ecma array中成员的数量
// @param elements: 已经编码好的成员，通常由另一个 Builder 的 PutNamed 系列方法生成
func (b *Builder) PutNamedEcmaArray(name string, count uint32, elements []byte) *Builder {
	b.PutString(name)
	h := make([]byte, 5)
	h[0] = TypeMarkerEcmaArray
	bele.BePutUint32(h[1:], count)
	b.buf.Write(h)
	b.buf.Write(elements)
	return b.PutObjectEnd()
}

func (b *Builder) Len() int {
	return b.buf.Len()
}

// Bytes 返回的内存块由 Builder 持有，继续写入后可能失效
func (b *Builder) Bytes() []byte {
	return b.buf.Bytes()
}
