package registry

import (
	"bytes"
	"encoding/json"

	"catport/pkg/contract"
	rfs "catport/plugins/reader/filesystem"
	wfs "catport/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (*wfs.FS, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 本地文件系统扫描器
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Writer 工厂注册表。返回具体类型，调用方需要其底层文件系统做路径解析。
var Writer = map[string]NewWriter{
	// fs: 写入本地磁盘
	"fs": func(raw json.RawMessage) (*wfs.FS, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.NewOS(&opts), nil
	},
	// mem: 内存文件系统（dry-run）
	"mem": func(raw json.RawMessage) (*wfs.FS, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.NewMemory(&opts), nil
	},
}
