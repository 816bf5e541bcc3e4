package main

import (
	"fmt"

	"kiln/internal/manifest"
	"kiln/internal/plan"
)

func roleName(role uint32) string {
	switch role {
	case manifest.RoleTextureData:
		return "texture data"
	case manifest.RoleTextureTable:
		return "texture table"
	case manifest.RoleBufferData:
		return "buffer data"
	case manifest.RoleBufferTable:
		return "buffer table"
	case manifest.RoleAssetData:
		return "asset data"
	case manifest.RoleAssetTable:
		return "asset table"
	default:
		return fmt.Sprintf("role %d", role)
	}
}

func manifestTableName(tbl uint32) string {
	switch tbl {
	case manifest.TableTexture:
		return "textures"
	case manifest.TableBuffer:
		return "buffers"
	case manifest.TableAsset:
		return "assets"
	default:
		return fmt.Sprintf("table %d", tbl)
	}
}

func kindName(kind uint32) string {
	return plan.Kind(kind).String()
}
