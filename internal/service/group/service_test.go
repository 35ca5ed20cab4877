package group

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"studyhub_server/internal/config"
	"studyhub_server/internal/dao/mysql/mysqltest"
	"studyhub_server/internal/dao/mysql/repository"
	"studyhub_server/internal/dto/request"
	"studyhub_server/internal/infrastructure/storage"
	"studyhub_server/internal/model"
	"studyhub_server/internal/service/chat"
	"studyhub_server/internal/service/cleanup"
	"studyhub_server/internal/service/guard"
	"studyhub_server/pkg/errorx"
)

type capturePublisher struct{ events []chat.GroupEvent }

func (p *capturePublisher) Publish(_ context.Context, ev chat.GroupEvent) error {
	p.events = append(p.events, ev)
	return nil
}

type invalidations struct{ groups []string }

func (i *invalidations) InvalidateGroup(groupId string) { i.groups = append(i.groups, groupId) }

type fixture struct {
	repos  *repository.Repositories
	store  storage.Backend
	events *capturePublisher
	inv    *invalidations
	svc    *groupInfoService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := mysqltest.NewRepos(t)
	store := storage.NewLocalBackend(t.TempDir())
	events := &capturePublisher{}
	inv := &invalidations{}
	engine := cleanup.NewEngine(repos, store, config.RetentionConfig{}, inv, events)
	svc := NewGroupService(repos, guard.New(repos), engine, inv, events)
	return &fixture{repos: repos, store: store, events: events, inv: inv, svc: svc}
}

func (f *fixture) attach(t *testing.T, groupId, uuid string) string {
	t.Helper()
	obj, err := f.store.Store(context.Background(), groupId, "notes.txt", strings.NewReader("notes"))
	require.NoError(t, err)
	require.NoError(t, f.repos.Message.Create(&model.Message{
		Uuid: uuid, GroupUuid: groupId, SendId: "U1", Locator: obj.Locator,
		FileUrl: "/api/study-groups/files/" + obj.Locator, FileName: "notes.txt", FileType: obj.MimeType,
		EstimatedSize: 100, CreatedAt: time.Now(),
	}))
	return obj.Locator
}

func TestCreateGroup(t *testing.T) {
	f := newFixture(t)

	rsp, err := f.svc.CreateGroup("U1", request.CreateStudyGroupRequest{Name: " Linear Algebra ", Semester: 2, SubjectId: "MA201"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rsp.Id, "G"))
	require.Equal(t, "Linear Algebra", rsp.Name)
	require.Equal(t, "U1", rsp.CreatorId)
	require.Equal(t, []string{"U1"}, rsp.Members)

	ok, err := f.repos.GroupMember.Exists(rsp.Id, "U1")
	require.NoError(t, err)
	require.True(t, ok)

	for _, semester := range []int8{0, 9, -1} {
		_, err := f.svc.CreateGroup("U1", request.CreateStudyGroupRequest{Name: "x", Semester: semester})
		require.Equal(t, errorx.CodeInvalidParam, errorx.GetCode(err), semester)
	}
	_, err = f.svc.CreateGroup("U1", request.CreateStudyGroupRequest{Name: "  ", Semester: 1})
	require.Equal(t, errorx.CodeInvalidParam, errorx.GetCode(err))
}

func TestJoinGroupIsIdempotent(t *testing.T) {
	f := newFixture(t)
	mysqltest.SeedGroup(t, f.repos, "G1", "U1")

	for i := 0; i < 2; i++ {
		rsp, err := f.svc.JoinGroup("U2", "G1")
		require.NoError(t, err)
		require.Equal(t, []string{"U1", "U2"}, rsp.Members)
		require.Equal(t, 2, rsp.MemberCnt)
	}

	group, err := f.repos.Group.FindByUuid("G1")
	require.NoError(t, err)
	require.Equal(t, 2, group.MemberCnt)

	_, err = f.svc.JoinGroup("U2", "G404")
	require.ErrorIs(t, err, errorx.ErrGroupNotFound)

	mine, err := f.svc.LoadMyGroups("U2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "G1", mine[0].Id)
}

func TestLeaveGroupTransfersCreator(t *testing.T) {
	f := newFixture(t)
	mysqltest.SeedGroup(t, f.repos, "G1", "U1", "U2", "U3")

	rsp, err := f.svc.LeaveGroup(context.Background(), "U1", "G1")
	require.NoError(t, err)
	require.False(t, rsp.Deleted)
	require.Equal(t, "U2", rsp.CreatorId)

	group, err := f.svc.GetGroup("G1")
	require.NoError(t, err)
	require.Equal(t, "U2", group.CreatorId)
	require.Equal(t, []string{"U2", "U3"}, group.Members)
	require.Contains(t, group.Members, group.CreatorId)

	// 普通成员退出不影响创建者
	rsp, err = f.svc.LeaveGroup(context.Background(), "U3", "G1")
	require.NoError(t, err)
	require.Equal(t, "U2", rsp.CreatorId)

	require.Len(t, f.events.events, 2)
	require.Equal(t, chat.EventMemberLeft, f.events.events[1].Type)
	require.Equal(t, "U3", f.events.events[1].UserId)
}

func TestLeaveGroupNotMember(t *testing.T) {
	f := newFixture(t)
	mysqltest.SeedGroup(t, f.repos, "G1", "U1")

	_, err := f.svc.LeaveGroup(context.Background(), "U2", "G1")
	require.ErrorIs(t, err, errorx.ErrForbidden)
	_, err = f.svc.LeaveGroup(context.Background(), "U2", "G404")
	require.ErrorIs(t, err, errorx.ErrGroupNotFound)
}

func TestLastMemberLeavingCascades(t *testing.T) {
	f := newFixture(t)
	mysqltest.SeedGroup(t, f.repos, "G1", "U1")
	mysqltest.SeedGroup(t, f.repos, "G2", "U1")
	locator := f.attach(t, "G1", "MG1A")
	other := f.attach(t, "G2", "MG2A")

	rsp, err := f.svc.LeaveGroup(context.Background(), "U1", "G1")
	require.NoError(t, err)
	require.True(t, rsp.Deleted)

	_, err = f.svc.GetGroup("G1")
	require.ErrorIs(t, err, errorx.ErrGroupNotFound)

	n, err := f.repos.Message.CountByGroup("G1")
	require.NoError(t, err)
	require.Zero(t, n)
	_, err = f.store.Open(context.Background(), locator)
	require.True(t, errorx.IsNotFound(err))

	// 其他小组不受影响
	content, err := f.store.Open(context.Background(), other)
	require.NoError(t, err)
	_ = content.Body.Close()

	require.Equal(t, []string{"G1"}, f.inv.groups)
	require.Equal(t, chat.EventGroupDeleted, f.events.events[len(f.events.events)-1].Type)

	uuids, err := f.repos.Group.FindAllUuids()
	require.NoError(t, err)
	require.Equal(t, []string{"G2"}, uuids)
}

func TestDeleteGroup(t *testing.T) {
	f := newFixture(t)
	mysqltest.SeedGroup(t, f.repos, "G1", "U1", "U2")
	locator := f.attach(t, "G1", "MG1A")

	err := f.svc.DeleteGroup(context.Background(), "U2", "G1")
	require.ErrorIs(t, err, errorx.ErrNotGroupCreator)
	require.Equal(t, 403, errorx.HTTPStatus(err))

	require.NoError(t, f.svc.DeleteGroup(context.Background(), "U1", "G1"))

	_, err = f.repos.Group.FindByUuid("G1")
	require.True(t, errorx.IsNotFound(err))
	members, err := f.repos.GroupMember.FindByGroupUuid("G1")
	require.NoError(t, err)
	require.Empty(t, members)
	_, err = f.store.Open(context.Background(), locator)
	require.True(t, errorx.IsNotFound(err))

	err = f.svc.DeleteGroup(context.Background(), "U1", "G1")
	require.ErrorIs(t, err, errorx.ErrGroupNotFound)
}
