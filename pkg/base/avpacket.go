// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"encoding/hex"
	"fmt"

	"github.com/q191201771/naza/pkg/nazabytes"
)

type AvPacketPt int

const (
	AvPacketPtUnknown AvPacketPt = -1
	AvPacketPtAvc     AvPacketPt = 96
	AvPacketPtAac     AvPacketPt = 97
)

// AvPacket
//
// 不同场景使用时，字段含义可能不同。
// 使用AvPacket的地方，应注明各字段的含义。
type AvPacket struct {
	PayloadType AvPacketPt
	Timestamp   int64 // dts，单位毫秒。如果是音频，也即pts
	Pts         int64 // 单位毫秒
	Payload     []byte
}

func (packet *AvPacket) IsAudio() bool {
	return packet.PayloadType == AvPacketPtAac
}

func (packet *AvPacket) IsVideo() bool {
	return packet.PayloadType == AvPacketPtAvc
}

func (packet *AvPacket) ReadableString() string {
	return fmt.Sprintf("type=%s, timestamp=%d, pts=%d, len=%d, payload=%s",
		packet.PayloadType.ReadableString(), packet.Timestamp, packet.Pts, len(packet.Payload), hex.EncodeToString(nazabytes.Prefix(packet.Payload, 8)))
}

func (a AvPacketPt) ReadableString() string {
	switch a {
	case AvPacketPtUnknown:
		return "unknown"
	case AvPacketPtAvc:
		return "avc"
	case AvPacketPtAac:
		return "aac"
	}
	return ""
}
