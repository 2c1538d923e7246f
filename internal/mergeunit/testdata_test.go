package mergeunit

const svnDescriptor = `vcs=svn
host=svn.example.org
repository=product
date=2024-03-01T10:15:00Z
branch_source=trunk
branch_target=branches/1.x
source_url=https://svn.example.org/product/trunk
target_url=https://svn.example.org/product/branches/1.x
revisions=1234,1236
message=Fix NPE in loader
file=core/Loader.java=>loader/Loader.java
file=pom.xml
! target branch is frozen until Friday
> merged automatically by the nightly job
## review done
# ping the release manager
`

const gitDescriptor = `vcs=git
host=git.example.org
repository=app
date=2024-03-02T08:00:00Z
branch_source=main
branch_target=release/2.x
source_url=https://git.example.org/app.git#main
target_url=https://git.example.org/app.git#release/2.x
commit_id=0123456789abcdef0123456789abcdef01234567
file=src/app.go
`
