package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/rxnote/internal/model"
)

// DefaultResolveTimeout はセッション/プロフィール解決のデフォルトタイムアウト。
const DefaultResolveTimeout = 10 * time.Second

// Snapshot はブートストラップが公開する読み取り専用の状態。
// Loadingは現在のIdentityに対する解決中のみtrueとなり、
// 追い越された解決が後からtrueへ戻すことはない。
type Snapshot struct {
	Identity *model.Identity
	Profile  *model.Profile
	Loading  bool
}

// Config はブートストラップの設定。
type Config struct {
	// ResolveTimeout はセッション/プロフィール解決のタイムアウト。
	// ゼロの場合はDefaultResolveTimeoutを使用する。
	ResolveTimeout time.Duration

	// OnChange はSnapshotが変化するたびに呼ばれる通知コールバック（任意）。
	OnChange func(Snapshot)

	// OnError は内部エラーの報告チャネル（任意）。
	// 解決失敗は状態をグレースフルに退行させたうえでここに報告され、
	// panicや未処理エラーとして呼び出し元に伝播することはない。
	OnError func(error)
}

// Bootstrap はセッションブートストラップの状態機械。
// 状態はSnapshotのみで外部に公開され、変更はBootstrap自身だけが行う。
// 解決結果の採否は単調増加する世代カウンタで判定し、
// 遅延到着した古い解決結果は破棄される。
type Bootstrap struct {
	idp      IdentityProvider
	profiles ProfileStore
	cfg      Config

	mu      sync.Mutex
	snap    Snapshot
	gen     uint64
	started bool
	closed  bool
	sub     Subscription

	group singleflight.Group
}

// New はBootstrapを生成する。初期状態は{nil, nil, true}。
func New(idp IdentityProvider, profiles ProfileStore, cfg Config) *Bootstrap {
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = DefaultResolveTimeout
	}
	return &Bootstrap{
		idp:      idp,
		profiles: profiles,
		cfg:      cfg,
		snap:     Snapshot{Loading: true},
	}
}

// Snapshot は現在の状態のコピーを返す。
func (b *Bootstrap) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snap
}

// Start は初期セッションの解決とイベント購読を開始する。
// 2回目以降の呼び出しは何もしない。
func (b *Bootstrap) Start() {
	b.mu.Lock()
	if b.started || b.closed {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	// イベントを取り逃がさないよう、初期セッション確認より先に購読する。
	sub := b.idp.OnAuthStateChange(b.handleAuthEvent)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	b.sub = sub
	b.gen++
	gen := b.gen
	b.mu.Unlock()

	go b.resolveSession(gen)
}

// Close はイベント購読を解除し、進行中の解決を無効化する。
// Close後に完了した解決が状態へ書き込むことはない。冪等。
func (b *Bootstrap) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.gen++ // 進行中の解決を世代不一致で無効化する
	sub := b.sub
	b.sub = nil
	b.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// SignUp は冪等登録プロトコルでアカウントを作成する。
// 登録済みメールアドレスの場合は同一認証情報でのサインインに1回だけフォールバックする。
// 結果の状態反映はIDプロバイダーのイベント経由で行われる。
func (b *Bootstrap) SignUp(ctx context.Context, email, password string, attrs SignUpAttributes) (*AuthResult, error) {
	return Register(ctx, b.idp, email, password, attrs)
}

// SignIn はメールアドレスとパスワードでサインインする。
func (b *Bootstrap) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	return b.idp.SignInWithPassword(ctx, email, password)
}

// SignOut は現在のセッションを破棄する。
func (b *Bootstrap) SignOut(ctx context.Context) error {
	return b.idp.SignOut(ctx)
}

// Route は解決済みの状態からルーティング判定を返す。
// 解決中（Loading=true）の場合はfalseを返し、呼び出し側は判定を保留すること。
func (b *Bootstrap) Route() (RouteDecision, bool) {
	b.mu.Lock()
	snap := b.snap
	b.mu.Unlock()

	if snap.Loading {
		return Stay, false
	}
	return Decide(snap.Identity, snap.Profile), true
}

// handleAuthEvent は認証状態変更イベントを処理する。
// イベントごとに世代を進め、古い解決を追い越し（supersede）扱いにする。
func (b *Bootstrap) handleAuthEvent(ev AuthEvent) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.gen++
	gen := b.gen

	if ev.Identity == nil {
		// サインアウト: 即座にAnonymousへ遷移する。
		b.snap = Snapshot{}
		snap := b.snap
		cb := b.cfg.OnChange
		b.mu.Unlock()
		if cb != nil {
			cb(snap)
		}
		return
	}

	// 解決中状態へ遷移する（Identityは即時反映、プロフィールは解決待ち）。
	b.snap = Snapshot{Identity: ev.Identity, Loading: true}
	snap := b.snap
	cb := b.cfg.OnChange
	b.mu.Unlock()
	if cb != nil {
		cb(snap)
	}

	go b.resolveIdentity(gen, ev.Identity)
}

// resolveSession は初期セッションを確認し、状態を解決する。
func (b *Bootstrap) resolveSession(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.ResolveTimeout)
	defer cancel()

	identity, err := b.idp.GetSession(ctx)
	if err != nil {
		// セッション確認失敗はAnonymousへ退行し、エラーとして報告する。
		b.commit(gen, nil, nil, fmt.Errorf("セッションの確認に失敗しました: %w", err))
		return
	}
	if identity == nil {
		b.commit(gen, nil, nil, nil)
		return
	}

	b.resolveIdentity(gen, identity)
}

// resolveIdentity はIdentityに対応するプロフィールを解決し、状態を確定する。
// 同一Identity IDに対する解決はsingleflightで同時に1つに抑制される。
func (b *Bootstrap) resolveIdentity(gen uint64, identity *model.Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.ResolveTimeout)
	defer cancel()

	v, err, _ := b.group.Do(identity.ID, func() (interface{}, error) {
		return b.resolveProfile(ctx, identity)
	})

	var profile *model.Profile
	if v != nil {
		profile = v.(*model.Profile)
	}

	// プロフィール解決失敗はprofile=nilのままIdentityを保持する。
	// Anonymousへの強制遷移は行わない（Identity自体は有効でありうる）。
	b.commit(gen, identity, profile, err)
}

// resolveProfile はget-or-createプロトコルでプロフィールを解決する。
//  1. IDで取得し、存在すればそのまま採用する（フィールドの上書きはしない）。
//  2. 未存在ならデフォルトプロフィールを合成して作成する。
//  3. 作成が重複エラーで失敗した場合（並行解決との競合）、
//     エラーにする前に1回だけ再取得する。
func (b *Bootstrap) resolveProfile(ctx context.Context, identity *model.Identity) (*model.Profile, error) {
	profile, err := b.profiles.GetByID(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile != nil {
		return profile, nil
	}

	fresh := model.DefaultProfile(identity.ID, identity.Email, time.Now())
	if err := b.profiles.Insert(ctx, fresh); err != nil {
		if model.IsProfileAlreadyExists(err) {
			existing, getErr := b.profiles.GetByID(ctx, identity.ID)
			if getErr == nil && existing != nil {
				return existing, nil
			}
			return nil, fmt.Errorf("プロフィールの再取得に失敗しました: %w", err)
		}
		return nil, fmt.Errorf("プロフィールの作成に失敗しました: %w", err)
	}

	return fresh, nil
}

// commit は解決結果を状態へ反映する。
// 世代が追い越されている、またはClose済みの場合は何もしない。
func (b *Bootstrap) commit(gen uint64, identity *model.Identity, profile *model.Profile, err error) {
	b.mu.Lock()
	if b.closed || gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.snap = Snapshot{Identity: identity, Profile: profile, Loading: false}
	snap := b.snap
	cb := b.cfg.OnChange
	onErr := b.cfg.OnError
	b.mu.Unlock()

	if err != nil && onErr != nil {
		onErr(err)
	}
	if cb != nil {
		cb(snap)
	}
}
