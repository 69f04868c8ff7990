package session_test

import (
	"strings"
	"testing"
	"time"

	"delivery-track/internal/domain/geo"
	"delivery-track/internal/domain/session"
	"delivery-track/internal/domain/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) *session.DeliverySession {
	t.Helper()
	sess, err := session.NewDeliverySession("driver-1", "+250788123456", 24*time.Hour)
	require.NoError(t, err)
	return sess
}

func TestNewDeliverySession(t *testing.T) {
	sess := newSession(t)

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, session.StatusPending, sess.Status)
	assert.Equal(t, "driver-1", sess.DriverID)
	assert.True(t, session.ValidTrackingToken(sess.TrackingToken))
	assert.True(t, sess.TokenExpiresAt.After(time.Now().UTC().Add(23*time.Hour)))
	assert.Nil(t, sess.StartedAt)
	assert.Nil(t, sess.LastDriverPosition)
}

func TestNewDeliverySession_RequiresActors(t *testing.T) {
	_, err := session.NewDeliverySession("  ", "+250788123456", time.Hour)
	assert.ErrorIs(t, err, session.ErrDriverRequired)

	_, err = session.NewDeliverySession("driver-1", "", time.Hour)
	assert.ErrorIs(t, err, session.ErrReceiverPhoneRequired)
}

func TestLifecycle_HappyPath(t *testing.T) {
	sess := newSession(t)

	require.NoError(t, sess.Activate())
	assert.Equal(t, session.StatusActive, sess.Status)
	require.NotNil(t, sess.StartedAt)

	require.NoError(t, sess.Complete())
	assert.Equal(t, session.StatusCompleted, sess.Status)
	require.NotNil(t, sess.CompletedAt)
}

func TestLifecycle_TerminalRepeatsAreNoOps(t *testing.T) {
	sess := newSession(t)
	require.NoError(t, sess.Activate())
	require.NoError(t, sess.Complete())

	first := *sess.CompletedAt
	require.NoError(t, sess.Complete())
	assert.Equal(t, first, *sess.CompletedAt)

	cancelled := newSession(t)
	require.NoError(t, cancelled.Cancel())
	require.NoError(t, cancelled.Cancel())
	assert.Equal(t, session.StatusCancelled, cancelled.Status)
}

func TestLifecycle_InvalidTransitions(t *testing.T) {
	sess := newSession(t)

	// cannot complete a pending session
	assert.ErrorIs(t, sess.Complete(), session.ErrInvalidTransition)

	require.NoError(t, sess.Activate())
	require.NoError(t, sess.Cancel())

	// cancelled is terminal, no way forward
	assert.ErrorIs(t, sess.Activate(), session.ErrInvalidTransition)
	assert.ErrorIs(t, sess.Complete(), session.ErrInvalidTransition)
}

func TestApplyTransition_UnknownTarget(t *testing.T) {
	sess := newSession(t)
	assert.ErrorIs(t, sess.ApplyTransition(session.StatusPending), session.ErrInvalidTransition)
}

func TestRecordPosition(t *testing.T) {
	sess := newSession(t)
	pos := geo.Position{Lat: -1.95, Lng: 30.06, SpeedKmh: 42, Timestamp: time.Now().UTC()}

	require.NoError(t, sess.RecordPosition(user.RoleDriver, pos))
	require.NotNil(t, sess.LastDriverPosition)
	assert.Equal(t, 42.0, sess.LastDriverPosition.SpeedKmh)
	assert.Nil(t, sess.LastReceiverPosition)

	require.NoError(t, sess.RecordPosition(user.RoleReceiver, pos))
	require.NotNil(t, sess.LastReceiverPosition)
}

func TestRecordPosition_Rejections(t *testing.T) {
	sess := newSession(t)
	pos := geo.Position{Lat: -1.95, Lng: 30.06, Timestamp: time.Now().UTC()}

	assert.ErrorIs(t, sess.RecordPosition(user.RoleAdmin, pos), user.ErrInvalidRole)
	assert.ErrorIs(t, sess.RecordPosition(user.RoleDriver, geo.Position{Lat: 91, Lng: 0}), geo.ErrInvalidLatitude)

	require.NoError(t, sess.Activate())
	require.NoError(t, sess.Complete())
	assert.ErrorIs(t, sess.RecordPosition(user.RoleDriver, pos), session.ErrSessionNotActive)
}

func TestOwnedBy(t *testing.T) {
	sess := newSession(t)
	assert.True(t, sess.OwnedBy("driver-1"))
	assert.True(t, sess.OwnedBy("  driver-1  "))
	assert.False(t, sess.OwnedBy("driver-2"))
	assert.False(t, sess.OwnedBy(""))
}

func TestTokenExpired(t *testing.T) {
	sess := newSession(t)
	assert.False(t, sess.TokenExpired(time.Now().UTC()))
	assert.True(t, sess.TokenExpired(time.Now().UTC().Add(25*time.Hour)))
}

func TestTrackingTokens_UniqueAndVersioned(t *testing.T) {
	a := session.NewTrackingToken()
	b := session.NewTrackingToken()

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "dt1_"))
	assert.True(t, session.ValidTrackingToken(a))
	assert.False(t, session.ValidTrackingToken("dt1_"))
	assert.False(t, session.ValidTrackingToken("v2_abcdef"))
	assert.False(t, session.ValidTrackingToken("dt1_not/base64url!!"))
}
