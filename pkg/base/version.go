// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "strings"

// 版本，该变量由外部脚本修改维护
const LalflvVersion = "v0.3.0"

var (
	LalflvLibraryName = "lalflv"
	LalflvGithubRepo  = "github.com/q191201771/lalflv"

	// e.g. lalflv v0.3.0 (github.com/q191201771/lalflv)
	LalflvFullInfo = LalflvLibraryName + " " + LalflvVersion + " (" + LalflvGithubRepo + ")"

	// e.g. 0.3.0
	LalflvVersionDot string

	// 写入flv metadata的encoder字段
	// e.g. lalflv0.3.0
	LalflvMetadataEncoder string
)

func init() {
	LalflvVersionDot = strings.TrimPrefix(LalflvVersion, "v")
	LalflvMetadataEncoder = LalflvLibraryName + LalflvVersionDot
}
