package queries

const (
	QueryCreateUser = `
		INSERT INTO users (id, name, email, avatar, status, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	QueryDeleteUser = `
		DELETE FROM users WHERE id = $1;
	`
	QueryGetUserByID = `
		SELECT id, name, email, avatar, status, last_seen
		FROM users
		WHERE id = $1;
	`
	QueryListUsers = `
		SELECT id, name, email, avatar, status, last_seen
		FROM users
		ORDER BY name, id;
	`
	QueryUpdateUserStatus = `
		UPDATE users
		SET status = $2, last_seen = $3
		WHERE id = $1
		RETURNING id, name, email, avatar, status, last_seen;
	`
)

const (
	QueryCreateCredential = `
		INSERT INTO auth_users (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4);
	`
	QueryGetCredentialByEmail = `
		SELECT id, email, password_hash, created_at
		FROM auth_users
		WHERE email = $1;
	`
)

const (
	QueryCreateSession = `
		INSERT INTO auth_sessions (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5);
	`
	QueryGetSessionByTokenHash = `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM auth_sessions
		WHERE token_hash = $1
		LIMIT 1;
	`
	QueryDeleteSessionByID   = `DELETE FROM auth_sessions WHERE id = $1;`
	QueryDeleteSessionByUser = `DELETE FROM auth_sessions WHERE user_id = $1;`
)

const (
	QueryCreateRoom = `
		INSERT INTO rooms (id, name, kind, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5);
	`
	QueryGetRoom = `
		SELECT id, name, kind, created_by, created_at
		FROM rooms
		WHERE id = $1;
	`
	// keyset pagination on (created_at, id) ascending
	QueryListRooms = `
		SELECT id, name, kind, created_by, created_at
		FROM rooms
		WHERE $1::timestamptz IS NULL
		   OR created_at > $1
		   OR (created_at = $1 AND id > $2::uuid)
		ORDER BY created_at, id
		LIMIT $3;
	`
	QueryAddParticipant = `
		INSERT INTO room_participants (room_id, user_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, user_id) DO NOTHING;
	`
	QueryRemoveParticipant = `DELETE FROM room_participants WHERE room_id = $1 AND user_id = $2;`
	QueryListParticipants  = `
		SELECT user_id
		FROM room_participants
		WHERE room_id = $1
		ORDER BY joined_at, user_id;
	`
	QueryListParticipantsOfRooms = `
		SELECT room_id, user_id
		FROM room_participants
		WHERE room_id = ANY($1::uuid[])
		ORDER BY joined_at, user_id;
	`
)

const (
	QueryCreateMessage = `
		INSERT INTO messages (id, room_id, sender_id, content, kind, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	QueryListMessagesByRoom = `
		SELECT id, room_id, sender_id, content, kind, read, created_at
		FROM messages
		WHERE room_id = $1
		  AND (
		    $2::timestamptz IS NULL
		    OR created_at > $2
		    OR (created_at = $2 AND id > $3::uuid)
		  )
		ORDER BY created_at, id
		LIMIT $4;
	`
	QueryMarkMessagesRead = `
		UPDATE messages
		SET read = true
		WHERE room_id = $1 AND sender_id <> $2 AND read = false;
	`
)

const (
	QueryAddReaction = `
		INSERT INTO message_reactions (message_id, user_id, emoji, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, user_id, emoji) DO NOTHING;
	`
	QueryRemoveReaction = `
		DELETE FROM message_reactions
		WHERE message_id = $1 AND user_id = $2 AND emoji = $3;
	`
	QueryListReactionsByMessages = `
		SELECT message_id, user_id, emoji, created_at
		FROM message_reactions
		WHERE message_id = ANY($1::uuid[])
		ORDER BY created_at, user_id;
	`
)

const (
	QueryCreateCall = `
		INSERT INTO video_calls (id, room_id, initiator_id, call_type, participants, created_at, ended_at)
		VALUES ($1, $2, $3, $4, $5::uuid[], $6, $7);
	`
	QueryUpdateCallParticipants = `UPDATE video_calls SET participants = $2::uuid[] WHERE id = $1;`
	QueryEndCall                = `UPDATE video_calls SET ended_at = $2 WHERE id = $1 AND ended_at IS NULL;`
	QueryActiveCallByRoom       = `
		SELECT id, room_id, initiator_id, call_type, participants::text[], created_at, ended_at
		FROM video_calls
		WHERE room_id = $1 AND ended_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1;
	`
)
