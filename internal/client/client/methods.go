package client

// Full gRPC method names. Payloads are google.protobuf.Struct messages.
const (
	identityService = "/storefront.identity.v1.IdentityService/"
	profileService  = "/storefront.data.v1.ProfileService/"

	MethodRequestOneTimeCode = identityService + "RequestOneTimeCode"
	MethodVerifyOneTimeCode  = identityService + "VerifyOneTimeCode"
	MethodGetSession         = identityService + "GetSession"
	MethodSetSession         = identityService + "SetSession"
	MethodRefreshSession     = identityService + "RefreshSession"
	MethodSignOut            = identityService + "SignOut"
	MethodUpdateCredential   = identityService + "UpdateCredential"
	MethodWatchSession       = identityService + "WatchSession"

	MethodGetProfile    = profileService + "GetProfile"
	MethodUpsertProfile = profileService + "UpsertProfile"
)
