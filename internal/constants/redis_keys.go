package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// CacheModulePrefix 缓存模块
	CacheModulePrefix = "cache"
	// JDModulePrefix 岗位描述模块
	JDModulePrefix = "jd"

	// EntityDedupSet 指纹去重集合实体
	EntityDedupSet = "dedup_set"
	// EntityFingerprintMap 指纹到简历ID的映射实体
	EntityFingerprintMap = "fp_to_resume"
	// EntityLock 写锁实体
	EntityLock = "lock"
	// EntityVector 向量实体
	EntityVector = "vector"

	// KeyFingerprintSet 缓存中已知指纹的集合 (SET)
	// 格式: app:cache:dedup_set
	KeyFingerprintSet = AppPrefix + ":" + CacheModulePrefix + ":" + EntityDedupSet

	// KeyFingerprintToResumeID 指纹到简历ID的映射 (STRING)
	// 格式: app:cache:fp_to_resume:{fingerprint}
	KeyFingerprintToResumeID = AppPrefix + ":" + CacheModulePrefix + ":" + EntityFingerprintMap + ":%s"

	// KeyFingerprintLock 单个指纹的写锁 (STRING, SETNX)
	// 格式: app:cache:lock:{fingerprint}
	KeyFingerprintLock = AppPrefix + ":" + CacheModulePrefix + ":" + EntityLock + ":%s"

	// KeyJDVector JD全文向量缓存 (HASH)
	// 格式: app:jd:vector:{jd_id}
	KeyJDVector = AppPrefix + ":" + JDModulePrefix + ":" + EntityVector + ":%s"
)
