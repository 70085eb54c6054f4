package migrate

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
)

// Target selects which schema a migration run applies to.
type Target string

const (
	TargetDirectory Target = "directory"
	TargetTenant    Target = "tenant"
)

// Repo-relative locations, used when authoring new migrations.
const (
	DirectoryDir = "pkg/migrate/migrations/directory"
	TenantDir    = "pkg/migrate/migrations/tenant"
)

//go:embed migrations/directory/*.sql migrations/tenant/*.sql
var embedded embed.FS

// DirFor returns the on-disk migrations directory for target.
func DirFor(target Target) (string, error) {
	switch target {
	case TargetDirectory:
		return DirectoryDir, nil
	case TargetTenant:
		return TenantDir, nil
	default:
		return "", fmt.Errorf("unknown migration target %q", target)
	}
}

// SourceFor returns the migrations compiled into the binary for target.
func SourceFor(target Target) (fs.FS, error) {
	dir, err := DirFor(target)
	if err != nil {
		return nil, err
	}
	return fs.Sub(embedded, path.Join("migrations", path.Base(dir)))
}
