package remote

import (
	"strings"
)

// Top-level collections.
const (
	Users             = "users"
	Conversations     = "conversations"
	UserConversations = "user-conversations"
)

// UserPath is users/{uid}.
func UserPath(uid string) string { return Users + "/" + uid }

// ConversationPath is conversations/{id}.
func ConversationPath(id string) string { return Conversations + "/" + id }

// MessagePath is conversations/{id}/messages/{mid}.
func MessagePath(conversationID, messageID string) string {
	return ConversationPath(conversationID) + "/messages/" + messageID
}

// MessageFieldPath addresses one field of a message.
func MessageFieldPath(conversationID, messageID string, field ...string) string {
	return MessagePath(conversationID, messageID) + "/" + strings.Join(field, "/")
}

// TypingPath is conversations/{id}/typing/{uid}.
func TypingPath(conversationID, uid string) string {
	return ConversationPath(conversationID) + "/typing/" + uid
}

// IndexPath is the membership index of uid.
func IndexPath(uid string) string { return UserConversations + "/" + uid }

// IndexEntryPath is user-conversations/{uid}/{conversationID}.
func IndexEntryPath(uid, conversationID string) string {
	return IndexPath(uid) + "/" + conversationID
}

// Split breaks a path into its collection, document id and the remainder
// inside the document. A collection path has an empty id.
func Split(path string) (collection, id, sub string, err error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return "", "", "", ErrInvalidPath
	}
	parts := strings.SplitN(path, "/", 3)
	for _, p := range parts[:min(len(parts), 2)] {
		if p == "" {
			return "", "", "", ErrInvalidPath
		}
	}
	switch len(parts) {
	case 1:
		return parts[0], "", "", nil
	case 2:
		return parts[0], parts[1], "", nil
	default:
		return parts[0], parts[1], parts[2], nil
	}
}

// DocKey joins a collection and id into the key of one stored document.
func DocKey(collection, id string) string {
	return collection + "/" + id
}
