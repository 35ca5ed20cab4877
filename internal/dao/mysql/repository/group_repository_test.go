package repository_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"studyhub_server/internal/dao/mysql/mysqltest"
	"studyhub_server/internal/model"
	"studyhub_server/pkg/errorx"
)

func TestGroupMembership(t *testing.T) {
	repos := mysqltest.NewRepos(t)
	mysqltest.SeedGroup(t, repos, "G1", "U1", "U2", "U3")

	ok, err := repos.GroupMember.Exists("G1", "U2")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repos.GroupMember.Exists("G1", "U9")
	require.NoError(t, err)
	require.False(t, ok)

	n, err := repos.GroupMember.Delete("G1", "U1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	members, err := repos.GroupMember.FindByGroupUuid("G1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, "U2", members[0].UserUuid)

	// 重复加入被唯一索引拒绝
	require.Error(t, repos.GroupMember.Create(&model.GroupMember{GroupUuid: "G1", UserUuid: "U2"}))
}

func TestGroupLifecycle(t *testing.T) {
	repos := mysqltest.NewRepos(t)
	mysqltest.SeedGroup(t, repos, "G1", "U1")
	mysqltest.SeedGroup(t, repos, "G2", "U2")

	require.NoError(t, repos.Group.UpdateCreator("G1", "U5"))
	require.NoError(t, repos.Group.IncrementMemberCount("G1"))
	g, err := repos.Group.FindByUuid("G1")
	require.NoError(t, err)
	require.Equal(t, "U5", g.CreatorId)
	require.Equal(t, 2, g.MemberCnt)

	uuids, err := repos.Group.FindAllUuids()
	require.NoError(t, err)
	require.Equal(t, []string{"G1", "G2"}, uuids)

	require.NoError(t, repos.Group.Delete("G1"))
	_, err = repos.Group.FindByUuid("G1")
	require.True(t, errorx.IsNotFound(err))

	uuids, err = repos.Group.FindAllUuids()
	require.NoError(t, err)
	require.Equal(t, []string{"G2"}, uuids)
}
