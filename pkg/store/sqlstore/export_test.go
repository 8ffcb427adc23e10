package sqlstore

var LocalPath = localPath
