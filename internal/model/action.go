package model

import (
	"strconv"
	"time"
)

// Action 去重后的用户行为：Actor 对 Object 执行了 Verb
type Action struct {
	ID     string `gorm:"primaryKey;type:varchar(36)"`
	Actor  string `gorm:"type:varchar(36);not null;index:idx_action_actor_object_verb,priority:1"`
	Verb   Verb   `gorm:"type:varchar(32);not null;index:idx_action_object_verb,priority:2;index:idx_action_actor_object_verb,priority:3"`
	Object string `gorm:"type:varchar(36);not null;index:idx_action_object_verb,priority:1;index:idx_action_actor_object_verb,priority:2"`
	// DedupKey 由 DedupKey.String() 生成，唯一索引保证并发 get-or-create 只落一行
	DedupKey  string `gorm:"type:varchar(128);not null;uniqueIndex:ux_action_dedup"`
	CreatedAt time.Time
}

func (Action) TableName() string { return "actions" }

// DedupKey identifies a logical action. Object scoped keys ignore the actor,
// actor scoped keys include it.
type DedupKey struct {
	Actor  string
	Object string
	Verb   Verb
}

// ObjectScoped builds the key for verbs that are unique per (object, verb).
func ObjectScoped(object string, verb Verb) DedupKey {
	return DedupKey{Object: object, Verb: verb}
}

// ActorScoped builds the key for verbs that are unique per (actor, object, verb).
func ActorScoped(actor, object string, verb Verb) DedupKey {
	return DedupKey{Actor: actor, Object: object, Verb: verb}
}

func (k DedupKey) IsActorScoped() bool { return k.Actor != "" }

// String 编码为 verb:len(object):object[:actor]。object 带长度前缀，
// 含 ':' 的 id 不会和其他 key 撞在一起
func (k DedupKey) String() string {
	s := string(k.Verb) + ":" + strconv.Itoa(len(k.Object)) + ":" + k.Object
	if k.IsActorScoped() {
		s += ":" + k.Actor
	}
	return s
}
