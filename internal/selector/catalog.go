package selector

// Navigation roles.
const (
	Logo              = "logo"
	AboutLink         = "aboutLink"
	AnnouncementsLink = "announcementsLink"
	FeedLink          = "feedLink"
	NoticesLink       = "noticesLink"
	LoginButton       = "loginButton"
	ProfileButton     = "profileButton"
	ProfileDropdown   = "profileDropdown"
	MyPageLink        = "myPageLink"
	LogoutButton      = "logoutButton"
)

// Feed navigation roles.
const (
	FeedSidebar    = "feedSidebar"
	AllPostsButton = "allPostsButton"
	MyPostsButton  = "myPostsButton"
)

// Auth form roles.
const (
	LoginForm         = "loginForm"
	EmailInput        = "emailInput"
	PasswordInput     = "passwordInput"
	LoginSubmitButton = "loginSubmitButton"
)

// Feed post roles.
const (
	CreatePostButton = "createPostButton"
	FeedPostItem     = "feedPost"
	LikeButton       = "likeButton"
	CommentButton    = "commentButton"
)

// Error page roles.
const (
	Error401 = "error401"
	Error403 = "error403"
	Error404 = "error404"
)

// Loading roles.
const (
	LoadingSpinner = "loadingSpinner"
	Skeleton       = "skeleton"
)

// Modal roles.
const (
	ModalOverlay     = "modalOverlay"
	ModalContent     = "modalContent"
	ModalCloseButton = "modalCloseButton"
	SuccessAlert     = "successAlert"
	ErrorAlert       = "errorAlert"
)

// Session-state roles used by the login and logout flows.
const (
	ProfileIndicator = "profileIndicator"
	ProfileOpener    = "profileOpener"
	LogoutControl    = "logoutControl"
	LoginAffordance  = "loginAffordance"
	LoggedOutMarker  = "loggedOutMarker"
	LoginSubmit      = "loginSubmit"
)

// Navigation is the site header.
var Navigation = Group{
	Logo: {
		`a[href="/"] img[alt="Home Logo"]`,
		`.logo`,
		`[data-testid="logo"]`,
		`img[alt*="Hello Pet"]`,
	},
	AboutLink:         headerLink("/about", "about-link"),
	AnnouncementsLink: headerLink("/announcements", "announcements-link"),
	FeedLink:          headerLink("/feed", "feed-link"),
	NoticesLink:       headerLink("/notices", "notices-link"),
	LoginButton: {
		`a[href="/auth/login"]`,
		`button:has-text("로그인")`,
		`.login-button`,
		`[data-testid="login-button"]`,
	},
	ProfileButton: {
		`img[alt="Profile"]`,
		`.profile-image`,
		`[data-testid="profile-button"]`,
		`button:has(img[alt="Profile"])`,
	},
	ProfileDropdown: {
		`.profile-dropdown`,
		`[data-testid="profile-dropdown"]`,
		`.dropdown-menu`,
	},
	MyPageLink: {
		`a[href="/me"]`,
		`a:has-text("마이페이지")`,
		`[data-testid="my-page-link"]`,
	},
	LogoutButton: {
		`button:has-text("로그아웃")`,
		`.logout-button`,
		`[data-testid="logout-button"]`,
	},
}

func headerLink(href, testID string) []string {
	return []string{
		`nav a[href="` + href + `"]`,
		`header a[href="` + href + `"]`,
		`.navigation a[href="` + href + `"]`,
		`[data-testid="` + testID + `"]`,
	}
}

// NavigationBar locates the header itself.
var NavigationBar = Flexible(`nav`, `.navigation`, `.navbar`, `[role="navigation"]`)

// NavRoles are the five header links every visitor sees.
var NavRoles = []string{Logo, AboutLink, AnnouncementsLink, FeedLink, NoticesLink}

// PageTitle locates a page heading.
var PageTitle = Flexible(`h1`, `.page-title`, `[data-testid="page-title"]`)

// FeedContent lists the feed page landmarks from most to least specific.
var FeedContent = []string{
	`.feed-sidebar`,
	`[role="main"]`,
	`.post-item`,
	`.feed-post`,
	`main`,
	`.min-h-screen`,
	`body`,
}

var FeedNavigation = Group{
	FeedSidebar: {
		`.feed-navigation`,
		`[data-testid="feed-navigation"]`,
		`.sidebar`,
	},
	AllPostsButton: {
		`button:has-text("모든 게시글")`,
		`a[href="/feed"]`,
		`[data-testid="all-posts-nav"]`,
	},
	MyPostsButton: {
		`button:has-text("내 게시글")`,
		`[data-testid="my-posts-nav"]`,
		`.my-posts-button`,
	},
}

var AuthForm = Group{
	LoginForm: {
		`form:has(input[type="email"], input[name="email"])`,
		`.login-form`,
		`[data-testid="login-form"]`,
	},
	EmailInput: {
		`input[type="email"]`,
		`input[name="email"]`,
		`input[placeholder*="이메일"]`,
		`input[placeholder*="email"]`,
		`#email`,
	},
	PasswordInput: {
		`input[type="password"]`,
		`input[name="password"]`,
		`input[placeholder*="패스워드"]`,
		`input[placeholder*="password"]`,
		`#password`,
	},
	LoginSubmitButton: {
		`button[type="submit"]`,
		`button:has-text("로그인")`,
		`button:has-text("Login")`,
		`input[type="submit"]`,
		`.login-submit-button`,
	},
}

var FeedPost = Group{
	CreatePostButton: {
		`button:has-text("새 게시물")`,
		`button:has-text("게시글 작성")`,
		`.create-post-button`,
		`[data-testid="create-post"]`,
		`a[href="/feed/create"]`,
	},
	FeedPostItem: {
		`.feed-post`,
		`.post-card`,
		`[data-testid="feed-post"]`,
		`article:has(.post-content)`,
		`.post-item`,
	},
	LikeButton: {
		`button:has(svg[stroke="currentColor"]):has(path[d*="M4.318 6.318"])`,
		`button:has-text("좋아요")`,
		`.like-button`,
		`[data-testid="like-button"]`,
		`[aria-label*="좋아요"]`,
	},
	CommentButton: {
		`button:has-text("댓글")`,
		`.comment-button`,
		`[data-testid="comment-button"]`,
		`[aria-label*="댓글"]`,
	},
}

var ErrorPage = Group{
	Error401: errorPage("401", "권한이 없습니다"),
	Error403: errorPage("403", "접근이 금지되었습니다"),
	Error404: errorPage("404", "페이지를 찾을 수 없습니다"),
}

func errorPage(status, message string) []string {
	return []string{
		`h1:has-text("` + status + `")`,
		`.error-` + status,
		`[data-testid="error-` + status + `"]`,
		`text="` + message + `"`,
	}
}

var Loading = Group{
	LoadingSpinner: {
		`.loading`,
		`.spinner`,
		`[data-testid="loading"]`,
		`.loading-overlay`,
		`.loading-indicator`,
	},
	Skeleton: {
		`.skeleton`,
		`.skeleton-loader`,
		`[data-testid="skeleton"]`,
		`.loading-skeleton`,
	},
}

// LoadingIndicator is the narrower spinner list used while waiting for a
// page's own loading state to clear.
var LoadingIndicator = Flexible(`.loading`, `.spinner`, `[data-testid="loading"]`, `.loading-overlay`)

var Modal = Group{
	ModalOverlay: {
		`.modal-overlay`,
		`.modal-backdrop`,
		`[data-testid="modal-overlay"]`,
	},
	ModalContent: {
		`.modal-content`,
		`.modal-body`,
		`[data-testid="modal-content"]`,
	},
	ModalCloseButton: {
		`.modal-close`,
		`button[aria-label="Close"]`,
		`[data-testid="modal-close"]`,
		`button:has-text("×")`,
	},
	SuccessAlert: {
		`.alert-success`,
		`.success-message`,
		`[data-testid="success-alert"]`,
	},
	ErrorAlert: {
		`.alert-error`,
		`.error-message`,
		`[data-testid="error-alert"]`,
	},
}

// Auth holds the session-state controls. Its lists differ slightly from the
// header group: the flows accept a profile-image test id and anchors for
// logout, and the logged-out check skips the login test id.
var Auth = Group{
	ProfileIndicator: {
		`img[alt="Profile"]`,
		`.profile-image`,
		`[data-testid="profile-image"]`,
	},
	ProfileOpener: {
		`img[alt="Profile"]`,
		`.profile-image`,
		`[data-testid="profile-image"]`,
		`button:has(img[alt="Profile"])`,
	},
	LogoutControl: {
		`button:has-text("로그아웃")`,
		`a:has-text("로그아웃")`,
		`.logout-button`,
		`[data-testid="logout-button"]`,
	},
	LoginAffordance: {
		`a[href="/auth/login"]`,
		`button:has-text("로그인")`,
		`.login-button`,
		`[data-testid="login-button"]`,
	},
	LoggedOutMarker: {
		`a[href="/auth/login"]`,
		`button:has-text("로그인")`,
		`.login-button`,
	},
	LoginSubmit: {
		`button[type="submit"]`,
		`button:has-text("로그인")`,
		`button:has-text("Login")`,
		`input[type="submit"]`,
		`.login-button`,
		`[data-testid="login-button"]`,
	},
}

// Catalog lists every group by name.
var Catalog = map[string]Group{
	"navigation":     Navigation,
	"feedNavigation": FeedNavigation,
	"authForm":       AuthForm,
	"feedPost":       FeedPost,
	"errorPage":      ErrorPage,
	"loading":        Loading,
	"modal":          Modal,
	"auth":           Auth,
}
