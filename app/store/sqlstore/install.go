package sqlstore

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var CreateTableFiles embed.FS

// Install 初始化数据库扩展与所有数据表，按文件名顺序执行，可重复运行
func (p *Provider) Install() error {
	if _, err := p.GetMaster().Exec("CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector extension, %w", err)
	}

	entries, err := CreateTableFiles.ReadDir("migrations")
	if err != nil {
		return err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		raw, err := CreateTableFiles.ReadFile("migrations/" + name)
		if err != nil {
			return err
		}
		if _, err = p.GetMaster().Exec(string(raw)); err != nil {
			return fmt.Errorf("failed to execute migration %s, %w", name, err)
		}
	}
	return nil
}
