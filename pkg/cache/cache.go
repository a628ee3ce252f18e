package cache

func Init() {
	_ = InitBlockedUserCache()
	_ = InitPresenceCache()
	_ = InitUnreadCache()
	_ = InitTombstoneCache()
	_ = InitLastMessageCache()
}
