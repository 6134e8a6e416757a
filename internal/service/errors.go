package service

// ErrorKind 调用方可见的错误类型
type ErrorKind string

const (
	KindSelfReference    ErrorKind = "SELF_REFERENCE"
	KindAlreadyExists    ErrorKind = "ALREADY_EXISTS"
	KindAlreadyPending   ErrorKind = "ALREADY_PENDING"
	KindAlreadyMatched   ErrorKind = "ALREADY_MATCHED"
	KindForbiddenBlocked ErrorKind = "FORBIDDEN_BLOCKED"
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindProfileNotFound  ErrorKind = "PROFILE_NOT_FOUND"
	KindInvalidArgument  ErrorKind = "INVALID_ARGUMENT"
	KindTransientFailure ErrorKind = "TRANSIENT_FAILURE"
)

// RelationError 互动引擎的业务错误；errors.Is 按 Kind 匹配
type RelationError struct {
	Kind    ErrorKind
	Message string
}

func (e *RelationError) Error() string {
	return e.Message
}

func (e *RelationError) Is(target error) bool {
	t, ok := target.(*RelationError)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, msg string) *RelationError {
	return &RelationError{Kind: kind, Message: msg}
}

var (
	ErrSelfReference    = newError(KindSelfReference, "cannot perform this action on yourself")
	ErrAlreadyExists    = newError(KindAlreadyExists, "relationship already exists")
	ErrAlreadyPending   = newError(KindAlreadyPending, "match request already pending")
	ErrAlreadyMatched   = newError(KindAlreadyMatched, "already matched")
	ErrForbiddenBlocked = newError(KindForbiddenBlocked, "action not allowed between blocked users")
	ErrNotFound         = newError(KindNotFound, "relationship not found")
	ErrProfileNotFound  = newError(KindProfileNotFound, "profile not found")
	ErrInvalidArgument  = newError(KindInvalidArgument, "invalid argument")
	ErrTransientFailure = newError(KindTransientFailure, "temporary failure, please retry")

	// ErrBlockedRelationship 收藏时的屏蔽错误，与 ErrForbiddenBlocked 同类
	ErrBlockedRelationship = ErrForbiddenBlocked
)
