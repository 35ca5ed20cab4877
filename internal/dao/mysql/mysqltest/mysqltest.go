// Package mysqltest 为上层测试提供基于 SQLite 的 Repository
package mysqltest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"studyhub_server/internal/config"
	"studyhub_server/internal/dao/mysql"
	"studyhub_server/internal/dao/mysql/repository"
	"studyhub_server/internal/model"
)

// NewRepos 每个测试一个独立的数据库文件
func NewRepos(t testing.TB) *repository.Repositories {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "studyhub.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := mysql.Migrate(db, config.RetentionConfig{MessageTTL: 24 * time.Hour, CleanupInterval: time.Hour}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.NewRepositories(db)
}

// SeedUser 写入一个用户
func SeedUser(t testing.TB, repos *repository.Repositories, uuid, name, uid string) *model.UserInfo {
	t.Helper()
	user := &model.UserInfo{Uuid: uuid, Name: name, Uid: uid}
	if err := repos.User.Create(user); err != nil {
		t.Fatalf("seed user %s: %v", uuid, err)
	}
	return user
}

// SeedGroup 写入小组，members 第一个为创建者
func SeedGroup(t testing.TB, repos *repository.Repositories, uuid string, members ...string) *model.GroupInfo {
	t.Helper()
	if len(members) == 0 {
		t.Fatalf("seed group %s without members", uuid)
	}
	group := &model.GroupInfo{
		Uuid:      uuid,
		Name:      "Group " + uuid,
		Semester:  3,
		CreatorId: members[0],
		MemberCnt: len(members),
	}
	if err := repos.Group.Create(group); err != nil {
		t.Fatalf("seed group %s: %v", uuid, err)
	}
	for _, m := range members {
		if err := repos.GroupMember.Create(&model.GroupMember{GroupUuid: uuid, UserUuid: m}); err != nil {
			t.Fatalf("seed member %s: %v", m, err)
		}
	}
	return group
}
